// Package config manages environment variables.
//
// It reads variables from the `.env` file (when present),
// loads them into structured Go types and validates that
// required values are present so they can be reused across
// the cart page runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the CLI fails fast on bad/missing config.
//   - Provide defaults for the client, page and observability blocks.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists it is loaded into the
	// process environment before anything below reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

/*
	Env vars are read using the prefix CARTPAGE_.

	- The prefix is removed and the rest is lowercased.
	- A double underscore marks nesting, so
	  CARTPAGE_CLIENT__BASE_URL -> client.base_url -> Config.Client.BaseURL
	- A literal "." in the variable name works as well.
*/

// EnvPrefix is the prefix every recognised environment variable carries.
const EnvPrefix = "CARTPAGE_"

// ServiceName tags logs and New Relic transactions.
const ServiceName = "cartpage"

// Config is the root configuration object.
//
// Observability is a pointer because it is optional. If not provided,
// defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Client        ClientConfig         `koanf:"client" validate:"required"`
	Page          PageConfig           `koanf:"page"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ClientConfig groups settings for calls to the cart endpoint.
//
// Timeout bounds a single update call; a reply that never comes would
// otherwise leave the row stale forever. MaxRPS <= 0 disables pacing.
type ClientConfig struct {
	BaseURL    string        `koanf:"base_url" validate:"required,url"`
	UpdatePath string        `koanf:"update_path" validate:"required,startswith=/"`
	Timeout    time.Duration `koanf:"timeout" validate:"min=1ms"`
	MaxRPS     float64       `koanf:"max_rps" validate:"min=0"`
	Burst      int           `koanf:"burst" validate:"min=0"`
}

// PageConfig controls how the page controller applies replies.
type PageConfig struct {
	// DiscardStale drops replies older than the newest one already
	// applied to the same row. Turning it off restores the
	// last-reply-wins behaviour.
	DiscardStale bool `koanf:"discard_stale"`
}

// DefaultConfig returns the configuration used before env vars are applied.
// BaseURL and Env have no default and must come from the environment.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			UpdatePath: "/update-cart",
			Timeout:    10 * time.Second,
			MaxRPS:     0,
			Burst:      1,
		},
		Page: PageConfig{
			DiscardStale: true,
		},
	}
}

// envKey maps a raw variable name into a koanf key path.
//
//	CARTPAGE_CLIENT__BASE_URL -> client.base_url
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// LoadConfig loads configuration from environment variables, unmarshals it
// on top of DefaultConfig, validates it, applies observability defaults and
// returns the resulting config.
//
// Behavior summary:
//   - Loads env vars with prefix CARTPAGE_
//   - Unmarshals into Config (defaults survive for unset keys)
//   - Validates required config blocks/fields
//   - Sets default observability if missing
//   - Overrides observability service name + environment
//   - Validates observability config as well
func LoadConfig() (*Config, error) {
	// "." is the key-path delimiter koanf uses to represent nesting.
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "could not load env variables")
	}

	mainConfig := DefaultConfig()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal main config")
	}

	if err := validator.New().Struct(mainConfig); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}

	// Service name and environment are forced so telemetry is split
	// consistently regardless of what the env says.
	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid observability config")
	}

	return mainConfig, nil
}
