// Package app defines the App struct that composes the cart page's main
// dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - the client of the update-cart endpoint
//   - every page controller opened through it
//
// It provides constructors and shutdown logic so commands can drive
// pages cleanly.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/deppfellow/cartpage/internal/cart"
	"github.com/deppfellow/cartpage/internal/cartapi"
	"github.com/deppfellow/cartpage/internal/config"
	"github.com/deppfellow/cartpage/internal/dom"
	"github.com/deppfellow/cartpage/internal/page"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/cartpage/internal/logger"
)

// App is the application container that holds shared resources.
//
// It is not a page itself. It holds:
//   - the config
//   - the logger(s)
//   - the cart endpoint client shared by all pages
//   - the controllers it opened, closed again on Shutdown
type App struct {
	// Config holds all environment/config values for the app.
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// LoggerService optionally holds the New Relic application instance.
	// If New Relic is disabled, this may exist but contain nil nrApp.
	LoggerService *loggerPkg.LoggerService

	// Client sends the plus/minus requests of every page.
	Client *cartapi.Client

	mu    sync.Mutex
	pages []*page.Controller
}

// New constructs an App and initializes the endpoint client.
//
// Nothing is sent until a page is opened and clicked.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*App, error) {
	client, err := cartapi.NewClient(&cfg.Client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize cart client")
	}

	logger.Debug().
		Str("endpoint", client.Endpoint()).
		Dur("timeout", cfg.Client.Timeout).
		Float64("max_rps", cfg.Client.MaxRPS).
		Bool("discard_stale", cfg.Page.DiscardStale).
		Msg("cart client ready")

	return &App{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		Client:        client,
	}, nil
}

// OpenPage parses a cart page from r and returns it with an initialized
// controller. onSettled may be nil.
//
// ctx bounds every request the controller sends; Shutdown (or the
// controller's own Close) ends it.
func (a *App) OpenPage(ctx context.Context, r io.Reader, onSettled func(page.Result)) (*dom.Document, *page.Controller, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse cart page")
	}

	ctrl := page.New(doc, page.Options{
		Client:    a.Client,
		Store:     cart.NewStore(a.Config.Page.DiscardStale),
		Logger:    a.Logger,
		NewRelic:  a.LoggerService.GetApplication(),
		OnSettled: onSettled,
	})

	if err := ctrl.Init(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize cart page")
	}

	a.mu.Lock()
	a.pages = append(a.pages, ctrl)
	a.mu.Unlock()

	return doc, ctrl, nil
}

// Shutdown closes every open page and flushes New Relic.
//
// Pages get until ctx's deadline to settle their in-flight clicks; the
// first error is returned after all of them were closed.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	pages := a.pages
	a.pages = nil
	a.mu.Unlock()

	var firstErr error
	for _, p := range pages {
		if err := p.Close(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close cart page")
		}
	}

	if a.LoggerService != nil {
		a.LoggerService.Shutdown()
	}

	return firstErr
}
