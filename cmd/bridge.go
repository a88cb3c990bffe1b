package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/fitlink/internal/server"
	"github.com/urfave/cli/v3"
)

// BridgeServe runs the redirect capture server until interrupted.
//
// The pending store backend follows config: a Redis address selects the
// shared store, otherwise tokens park in process memory.
func (r *Runner) BridgeServe(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Bridge.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		r.config.Bridge.Port = int(port)
	}

	var store server.PendingStore
	if addr := r.config.Bridge.RedisAddr; addr != "" {
		redisStore, err := server.NewRedisStore(ctx, addr)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		store = redisStore
		r.logger.Info("pending store backed by redis", "addr", addr)
	} else {
		store = server.NewMemoryStore()
	}

	bridge, err := server.NewBridge(r.config, store, r.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- bridge.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down bridge server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return bridge.Shutdown(shutdownCtx)
}
