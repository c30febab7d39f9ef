package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VoidMesh/worldsim/internal/config"
	"github.com/VoidMesh/worldsim/internal/logging"
	"github.com/VoidMesh/worldsim/services/persist"
	"github.com/VoidMesh/worldsim/services/world"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logging.InitLogger()
	logger := logging.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load world configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := world.Options{Authoritative: true}

	// Snapshots go to Postgres when DATABASE_URL is set; otherwise saves are
	// logged and discarded, which is only acceptable for local development.
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "error", err)
		}
		defer pool.Close()

		store, err := persist.NewStore(pool, cfg.WorldID)
		if err != nil {
			logger.Fatal("Failed to create snapshot store", "error", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to ensure snapshot schema", "error", err)
		}
		opts.Saver = store
		opts.Rehydrator = store
	} else {
		logger.Warn("DATABASE_URL not set; tile snapshots will not be persisted")
	}

	w, err := world.New(cfg, opts)
	if err != nil {
		logger.Fatal("Failed to construct world", "error", err)
	}

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("World loop exited", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.Shutdown(flushCtx); err != nil {
		logger.Error("Shutdown flush failed", "error", err)
		os.Exit(1)
	}
	logger.Info("World stopped cleanly")
}
