// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/stakealloc/internal/clients/backend"
	"github.com/aristath/stakealloc/internal/config"
	"github.com/aristath/stakealloc/internal/database"
	"github.com/aristath/stakealloc/internal/modules/optimizer"
	"github.com/aristath/stakealloc/internal/modules/strategies"
	"github.com/aristath/stakealloc/internal/resultcache"
	"github.com/aristath/stakealloc/internal/scheduler"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Open and migrate the cache database (when enabled)
// 2. Load strategy presets
// 3. Create services
// 4. Register background jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	if cfg.CacheEnabled {
		db, err := database.New(database.Config{
			Path:    cfg.CachePath(),
			Profile: database.ProfileCache,
			Name:    "cache",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate cache database: %w", err)
		}
		container.CacheDB = db
		container.CacheRepo = resultcache.NewRepository(db.Conn())
		log.Info().Str("path", db.Path()).Msg("Result cache enabled")
	}

	registry, err := strategies.Load(cfg.StrategiesPath)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to load strategies: %w", err)
	}
	container.Strategies = registry

	// A nil *Repository must not become a non-nil interface
	var cache optimizer.BlobStore
	if container.CacheRepo != nil {
		cache = container.CacheRepo
	}
	container.Optimizer = optimizer.NewService(cfg.Optimizer(), cache, registry, log)

	if cfg.BackendBaseURL != "" {
		container.Backend = backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, log)
		log.Info().Str("url", cfg.BackendBaseURL).Msg("Proxying /api/optimize to backend")
	}

	if err := registerJobs(container, cfg, log); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	return container, nil
}

// registerJobs schedules cache maintenance. Nothing is scheduled without a cache.
func registerJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)
	if container.CacheRepo == nil {
		return nil
	}

	cleanup := resultcache.NewCleanupJob(container.CacheRepo, log)
	if err := container.Scheduler.AddJob(cfg.CacheCleanupSchedule, cleanup); err != nil {
		return fmt.Errorf("cache cleanup job: %w", err)
	}
	// Entries may have expired while the server was down
	if err := container.Scheduler.RunNow(cleanup); err != nil {
		log.Warn().Err(err).Msg("Startup cache cleanup failed")
	}
	if err := container.Scheduler.AddJob("@hourly", scheduler.NewWALCheckpointJob(log, container.CacheDB)); err != nil {
		return fmt.Errorf("WAL checkpoint job: %w", err)
	}
	return nil
}
