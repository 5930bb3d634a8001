// Command cartctl drives a saved cart page against a live update-cart
// endpoint: it lists the rows of the page and replays plus/minus clicks,
// writing the patched HTML back out.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/cartpage/internal/app"
	"github.com/deppfellow/cartpage/internal/config"
	"github.com/deppfellow/cartpage/internal/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// cli carries what the root command builds for its subcommands.
type cli struct {
	baseURL string
	app     *app.App
}

func main() {
	bootstrap := logger.NewLogger(config.DefaultObservabilityConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, c := newRootCmd()
	err := root.ExecuteContext(ctx)
	if shutdownErr := c.shutdown(); err == nil {
		err = shutdownErr
	}
	if err != nil {
		stop()
		bootstrap.Fatal().Err(err).Msg("cartctl failed")
	}
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Drive the plus/minus controls of a saved cart page",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}

	root.PersistentFlags().StringVar(&c.baseURL, "base-url", "", "base URL of the cart endpoint (overrides "+config.EnvPrefix+"CLIENT__BASE_URL)")

	root.AddCommand(newRowsCmd(c), newClickCmd(c))
	return root, c
}

// setup loads the config and builds the App every subcommand runs on.
func (c *cli) setup() error {
	if c.baseURL != "" {
		if err := os.Setenv(config.EnvPrefix+"CLIENT__BASE_URL", c.baseURL); err != nil {
			return errors.Wrap(err, "could not apply --base-url")
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	log := logger.NewLoggerWithService(cfg.Observability, loggerService, os.Stderr)

	a, err := app.New(cfg, &log, loggerService)
	if err != nil {
		loggerService.Shutdown()
		return err
	}
	c.app = a
	return nil
}

// shutdown closes the pages opened by the subcommand and flushes New Relic.
func (c *cli) shutdown() error {
	if c.app == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return c.app.Shutdown(ctx)
}
