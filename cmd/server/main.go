// Package main is the entry point for the stakealloc optimisation server.
// It solves integer stake allocations over mutually exclusive outcomes and serves
// them over HTTP, optionally caching results or forwarding to an upstream backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/stakealloc/internal/config"
	"github.com/aristath/stakealloc/internal/di"
	"github.com/aristath/stakealloc/internal/modules/optimizer/handlers"
	"github.com/aristath/stakealloc/internal/server"
	"github.com/aristath/stakealloc/pkg/logger"
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
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		Service: "stakealloc",
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Bool("cache", cfg.CacheEnabled).
		Dur("solve_timeout", cfg.SolveTimeout).
		Msg("Starting stakealloc")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close cache database")
		}
	}()

	// Keep the interface nil when no backend is configured
	var proxy handlers.Proxy
	var backendURL string
	if container.Backend != nil {
		proxy = container.Backend
		backendURL = container.Backend.BaseURL()
	}
	optimizerHandler := handlers.NewHandler(container.Optimizer, proxy, container.Strategies, log)

	var cacheStats server.CacheStatsProvider
	if container.CacheRepo != nil {
		cacheStats = container.CacheRepo
	}
	systemHandlers := server.NewSystemHandlers(log, container.CacheDB, cacheStats, backendURL)

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.SolveTimeout + cfg.BackendTimeout,
		System:         systemHandlers,
		Modules:        []server.RouteRegistrar{optimizerHandler},
	})

	container.Scheduler.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	container.Scheduler.Stop()

	// In-flight solves get up to 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
