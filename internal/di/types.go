package di

import (
	"github.com/aristath/stakealloc/internal/clients/backend"
	"github.com/aristath/stakealloc/internal/database"
	"github.com/aristath/stakealloc/internal/modules/optimizer"
	"github.com/aristath/stakealloc/internal/modules/strategies"
	"github.com/aristath/stakealloc/internal/resultcache"
	"github.com/aristath/stakealloc/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Database (nil when caching is disabled)
	CacheDB *database.DB

	// Repositories
	CacheRepo *resultcache.Repository

	// Services
	Strategies *strategies.Registry
	Optimizer  *optimizer.Service
	Backend    *backend.Client // nil unless BACKEND_BASE_URL is set

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.CacheDB != nil {
		return c.CacheDB.Close()
	}
	return nil
}
