package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/stakealloc/internal/config"
	"github.com/aristath/stakealloc/internal/modules/optimizer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:                 8001,
		DataDir:              t.TempDir(),
		CacheEnabled:         true,
		CacheTTL:             time.Hour,
		CacheCleanupSchedule: "0 */15 * * * *",
		SolveTimeout:         time.Minute,
		MinBudget:            1,
		MaxCandidates:        16,
		MaxBitmaskCandidates: 12,
		MaxSolverMemoryMB:    256,
		BatchWorkers:         2,
		MaxBatchSize:         4,
		BackendTimeout:       time.Second,
	}
}

func TestWire_WithCache(t *testing.T) {
	container, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, container.CacheDB)
	require.NotNil(t, container.CacheRepo)
	assert.NotNil(t, container.Strategies)
	assert.NotNil(t, container.Optimizer)
	assert.Nil(t, container.Backend)
	assert.Equal(t, 2, container.Scheduler.Entries())
}

func TestWire_CachesSolves(t *testing.T) {
	container, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	p := 0.5
	req := &optimizer.Request{
		Budget:   "10",
		Rounding: "floor",
		Mode:     "all_weather_maximin",
		Candidates: []optimizer.CandidateInput{
			{Name: "A", P: &p, M: []byte(`"2"`)},
			{Name: "B", P: &p, M: []byte(`"2"`)},
		},
	}

	first, err := container.Optimizer.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := container.Optimizer.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.SolveID, second.SolveID)
	assert.Equal(t, first.Allocation, second.Allocation)
}

func TestWire_PurgesExpiredOnStartup(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = container.CacheDB.Conn().Exec(
		`INSERT INTO solve_cache (fingerprint, mode, solve_id, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"stale", "maximize_ev", "id", []byte{0x80}, time.Now().Add(-2*time.Hour).Unix(), time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, container.Close())

	container, err = Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	stats, err := container.CacheRepo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
}

func TestWire_WithoutCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheEnabled = false
	cfg.BackendBaseURL = "http://backend:8000"

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.Nil(t, container.CacheDB)
	assert.Nil(t, container.CacheRepo)
	require.NotNil(t, container.Backend)
	assert.Equal(t, "http://backend:8000", container.Backend.BaseURL())
	assert.Equal(t, 0, container.Scheduler.Entries())
}

func TestWire_BadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheCleanupSchedule = "whenever"

	_, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_MissingStrategiesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.StrategiesPath = "/nonexistent/strategies.yaml"

	_, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
