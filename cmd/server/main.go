// Package main is the entry point for the geld advisory service.
// It serves the goal, allocation and rebalancing API and runs the
// background maintenance jobs.
//
// The application follows the same layering throughout:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/geld/internal/config"
	"github.com/aristath/geld/internal/di"
	"github.com/aristath/geld/internal/scheduler"
	"github.com/aristath/geld/internal/server"
	"github.com/aristath/geld/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from the environment (.env supported)
// 2. Initializes logging
// 3. Wires databases, repositories and services
// 4. Registers and starts the scheduled jobs
// 5. Starts the HTTP server
// 6. Waits for a shutdown signal and stops everything in reverse order
//
// Two databases are used:
// - advisory.db: clients, holdings, goals, ownership slices, indicators
// - cache.db: staged rebalance results (ephemeral)
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config failed before we know the level, log with defaults
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting geld")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Closing flushes WAL checkpoints, so it must run even on early return
	defer container.Close()

	sched := scheduler.New(container.EventManager, log)
	if _, err := di.RegisterJobs(container, cfg, sched, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight requests get 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for running jobs, so no job touches a closed database
	sched.Stop()

	log.Info().Msg("Server stopped")
}
