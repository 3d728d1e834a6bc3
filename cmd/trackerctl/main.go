package main

import (
	"context"
	"io"
	"os"

	"approval-tracker/backend/internal/cli"
	"approval-tracker/backend/internal/config"
	"approval-tracker/backend/internal/logging"
	"approval-tracker/backend/internal/repository"
	"approval-tracker/backend/internal/services"
)

func main() {
	cli.Execute(&cli.App{Connect: connect})
}

func connect(ctx context.Context, configPath string) (services.Tracker, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	var logOut io.Writer = io.Discard
	if cfg.Debug {
		logOut = os.Stderr
	}
	logger := logging.NewLoggerTo(logOut, cfg.Debug)

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, &services.PersistenceError{Op: "open " + cfg.Store.Driver + " store", Err: err}
	}

	tracker := services.NewTrackerService(store,
		services.WithLogger(logger),
		services.WithAnonymousActor(cfg.Tracker.AnonymousActor),
	)
	return tracker, func() { store.Close() }, nil
}
