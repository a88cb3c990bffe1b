package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/fitlink/internal/services"
	"github.com/desertthunder/fitlink/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var fitbit *services.FitbitService
	if svc, err := services.NewFitbitService(config.Credentials.Fitbit); err == nil {
		fitbit = svc
	} else {
		logger.Debug("fitbit service not configured", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Fitbit: fitbit,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "fitlink",
		Usage:    "Link a Fitbit account to the app through the implicit grant",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
