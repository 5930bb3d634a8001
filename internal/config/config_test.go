package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("CARTPAGE_PRIMARY__ENV", "development")
	t.Setenv("CARTPAGE_CLIENT__BASE_URL", "http://localhost:5000")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Client.BaseURL != "http://localhost:5000" {
		t.Errorf("expected base url from env, got %q", cfg.Client.BaseURL)
	}
	if cfg.Client.UpdatePath != "/update-cart" {
		t.Errorf("expected default update path, got %q", cfg.Client.UpdatePath)
	}
	if cfg.Client.Timeout != 10*time.Second {
		t.Errorf("expected default timeout 10s, got %s", cfg.Client.Timeout)
	}
	if !cfg.Page.DiscardStale {
		t.Error("expected stale discarding on by default")
	}
	if cfg.Observability == nil {
		t.Fatal("expected observability defaults to be injected")
	}
	if cfg.Observability.ServiceName != ServiceName {
		t.Errorf("expected service name %q, got %q", ServiceName, cfg.Observability.ServiceName)
	}
	if cfg.Observability.Environment != "development" {
		t.Errorf("expected environment to follow primary.env, got %q", cfg.Observability.Environment)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CARTPAGE_CLIENT__TIMEOUT", "250ms")
	t.Setenv("CARTPAGE_CLIENT__MAX_RPS", "5")
	t.Setenv("CARTPAGE_PAGE__DISCARD_STALE", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Client.Timeout != 250*time.Millisecond {
		t.Errorf("expected timeout 250ms, got %s", cfg.Client.Timeout)
	}
	if cfg.Client.MaxRPS != 5 {
		t.Errorf("expected max rps 5, got %v", cfg.Client.MaxRPS)
	}
	if cfg.Page.DiscardStale {
		t.Error("expected stale discarding to be turned off")
	}
}

func TestLoadConfig_MissingBaseURL(t *testing.T) {
	t.Setenv("CARTPAGE_PRIMARY__ENV", "development")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error for missing base url")
	}
}

func TestLoadConfig_InvalidUpdatePath(t *testing.T) {
	setRequired(t)
	t.Setenv("CARTPAGE_CLIENT__UPDATE_PATH", "update-cart")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error for relative update path")
	}
}

func TestObservabilityConfig_Validate(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown level")
	}

	cfg = DefaultObservabilityConfig()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestObservabilityConfig_GetLogLevel(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	cfg.Logging.Level = ""

	cfg.Environment = "production"
	if got := cfg.GetLogLevel(); got != "info" {
		t.Errorf("production default: expected info, got %s", got)
	}

	cfg.Environment = "development"
	if got := cfg.GetLogLevel(); got != "debug" {
		t.Errorf("development default: expected debug, got %s", got)
	}

	cfg.Logging.Level = "warn"
	if got := cfg.GetLogLevel(); got != "warn" {
		t.Errorf("explicit level: expected warn, got %s", got)
	}
}
