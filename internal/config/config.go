// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/stakealloc/internal/modules/allocation"
	"github.com/aristath/stakealloc/internal/modules/optimizer"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           int
	LogLevel       string
	DevMode        bool
	DataDir        string
	AllowedOrigins []string

	CacheEnabled         bool
	CacheTTL             time.Duration
	CacheCleanupSchedule string

	SolveTimeout         time.Duration
	MinBudget            int
	MinStake             int
	MaxStake             int
	MaxCandidates        int
	MaxBitmaskCandidates int
	MaxSolverMemoryMB    int
	BatchWorkers         int
	MaxBatchSize         int

	StrategiesPath string // Empty uses the embedded registry

	BackendBaseURL string // Empty disables the upstream proxy
	BackendTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		Port:           getEnvAsInt("PORT", 8001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		DataDir:        absDataDir,
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),

		CacheEnabled:         getEnvAsBool("CACHE_ENABLED", true),
		CacheTTL:             getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 */15 * * * *"),

		SolveTimeout:         getEnvAsDuration("SOLVE_TIMEOUT", 30*time.Second),
		MinBudget:            getEnvAsInt("MIN_BUDGET", 1),
		MinStake:             getEnvAsInt("MIN_STAKE", 0),
		MaxStake:             getEnvAsInt("MAX_STAKE", 0),
		MaxCandidates:        getEnvAsInt("MAX_CANDIDATES", 64),
		MaxBitmaskCandidates: getEnvAsInt("MAX_BITMASK_CANDIDATES", 16),
		MaxSolverMemoryMB:    getEnvAsInt("MAX_SOLVER_MEMORY_MB", 512),
		BatchWorkers:         getEnvAsInt("BATCH_WORKERS", runtime.NumCPU()),
		MaxBatchSize:         getEnvAsInt("MAX_BATCH_SIZE", 32),

		StrategiesPath: getEnv("STRATEGIES_PATH", ""),

		BackendBaseURL: getEnv("BACKEND_BASE_URL", ""),
		BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the configured limits
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.MinBudget < 1 {
		return fmt.Errorf("MIN_BUDGET must be at least 1, got %d", c.MinBudget)
	}
	if c.MinStake < 0 || c.MaxStake < 0 {
		return fmt.Errorf("stake limits must be non-negative")
	}
	if c.MaxStake > 0 && c.MinStake > c.MaxStake {
		return fmt.Errorf("MIN_STAKE %d exceeds MAX_STAKE %d", c.MinStake, c.MaxStake)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("MAX_CANDIDATES must be at least 1, got %d", c.MaxCandidates)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be at least 1, got %d", c.MaxBatchSize)
	}
	if c.SolveTimeout <= 0 {
		return fmt.Errorf("SOLVE_TIMEOUT must be positive")
	}
	return nil
}

// CachePath returns the location of the result cache database
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Optimizer returns the optimizer service configuration
func (c *Config) Optimizer() optimizer.Config {
	return optimizer.Config{
		Limits: optimizer.Limits{
			MinBudget:     c.MinBudget,
			MaxCandidates: c.MaxCandidates,
			DefaultFilter: allocation.StakeFilter{Min: c.MinStake, Max: c.MaxStake},
		},
		MaxBitmaskCandidates: c.MaxBitmaskCandidates,
		MaxSolverMemoryMB:    c.MaxSolverMemoryMB,
		SolveTimeout:         c.SolveTimeout,
		CacheTTL:             c.CacheTTL,
		BatchWorkers:         c.BatchWorkers,
		MaxBatchSize:         c.MaxBatchSize,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
