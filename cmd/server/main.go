// Package main is the entry point for the Vigil regulatory exposure and
// breach detection engine. Vigil ingests FIX execution reports, maintains
// delta-adjusted exposure per holding, classifies regulatory breach status
// with filing deadlines, records bounded time-series history with a durable
// mirror, and delivers rule-based alerts.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/di"
	"github.com/aristath/vigil/internal/scheduler"
	"github.com/aristath/vigil/internal/server"
	"github.com/aristath/vigil/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
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

	log.Info().Msg("Starting Vigil")

	// Wire all dependencies: databases, repositories, services, jobs
	sched := scheduler.New(log)
	container, err := di.Wire(cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.CloseDatabases()

	// Start the durable mirror before any store writes can be submitted
	container.MirrorWorker.Start()

	// Connect the market data feed and route executions for every loaded
	// holding into the compliance engine.
	if err := container.Provider.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect market data provider")
	}

	subscriptions := container.HoldingsService.Subscriptions()
	for _, view := range container.HoldingsService.List() {
		ticker := view.Holding.Ticker
		if err := container.Provider.SubscribeToTicker(ticker, subscriptions.Dispatch); err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("Failed to subscribe to ticker feed")
		}
	}

	// Start HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sched.Start()

	log.Info().Int("port", cfg.Port).Msg("Vigil started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	// Stop accepting HTTP traffic first
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop the feed so no further executions arrive
	if err := container.Provider.Dispose(); err != nil {
		log.Error().Err(err).Msg("Provider dispose failed")
	}

	// Stop timers, then flush remaining state
	sched.Stop()
	container.HoldingsService.RecomputeDirty()
	container.HoldingsService.Close()

	// Drain pending notification deliveries before the mirror stops, so the
	// final delivery audit entries still reach the durable store
	container.AlertingService.Stop()

	// Drain the mirror queue so queued history reaches the database
	container.MirrorWorker.Stop()

	log.Info().Msg("Shutdown complete")
}
