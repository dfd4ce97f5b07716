// Package main is the entry point for the Stockfolio portfolio tracker.
// It serves the portfolio, dashboard and market APIs, keeps the quote cache
// warm in the background and persists the portfolio store to SQLite.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/stockfolio/internal/config"
	"github.com/aristath/stockfolio/internal/di"
	"github.com/aristath/stockfolio/internal/server"
	"github.com/aristath/stockfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Stockfolio")

	// Databases, store restore, quote providers, services and jobs
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persistCtx, stopPersister := context.WithCancel(context.Background())
	defer stopPersister()
	if container.Persister != nil {
		go container.Persister.Run(persistCtx)
		log.Info().Int("keep", cfg.SnapshotKeep).Msg("Snapshot persister started")
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	// Stop background jobs first so no refresh publishes into a closing hub
	container.Scheduler.Stop()
	container.Hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Write out whatever the persister has not saved yet
	if container.Persister != nil {
		stopPersister()
		select {
		case <-container.Persister.Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("Snapshot persister did not stop in time")
		}
	}

	log.Info().Msg("Server stopped")
}
