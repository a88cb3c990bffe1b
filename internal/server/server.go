package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/dispatch"
	"github.com/desertthunder/fitlink/internal/shared"
)

// Bridge assembles the router, middleware, and capture handler into a
// runnable HTTP server.
type Bridge struct {
	server *http.Server
	logger *log.Logger
}

// NewBridge builds the bridge server from config. The redirect host for
// the universal-link encoding derives from the canonical redirect URI so
// the two can never drift apart.
func NewBridge(cfg *shared.Config, store PendingStore, logger *log.Logger) (*Bridge, error) {
	redirectURL, err := url.Parse(cfg.Credentials.Fitbit.RedirectURI)
	if err != nil || redirectURL.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q is not a valid URL", shared.ErrInvalidConfig, cfg.Credentials.Fitbit.RedirectURI)
	}

	handler := NewBridgeHandler(BridgeOpts{
		Store:     store,
		Encodings: dispatch.Encodings(cfg.App.Scheme, redirectURL.Host),
		Policy: dispatch.Policy{
			Interval:    time.Duration(cfg.Dispatch.IntervalMS) * time.Millisecond,
			MaxAttempts: cfg.Dispatch.MaxAttempts,
		},
		TTL:    time.Duration(cfg.Bridge.PendingTTL) * time.Second,
		Logger: logger,
	})

	router := NewBasicRouter()
	router.Use(LoggingMiddleware(logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Bridge.Host, cfg.Bridge.Port)

	return &Bridge{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}, nil
}

// Addr returns the listen address.
func (b *Bridge) Addr() string {
	return b.server.Addr
}

// Start serves until Shutdown or a listener error.
func (b *Bridge) Start() error {
	b.logger.Info("bridge server listening", "addr", b.server.Addr)
	if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("bridge server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.server.Shutdown(ctx)
}
