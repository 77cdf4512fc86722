package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/stakealloc/internal/database"
	"github.com/aristath/stakealloc/internal/resultcache"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// CacheStatsProvider reports result cache contents
type CacheStatsProvider interface {
	Stats(ctx context.Context) (*resultcache.Stats, error)
}

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	cacheDB     *database.DB
	cache       CacheStatsProvider
	backendURL  string
	sample      time.Duration
}

// NewSystemHandlers creates a new system handlers instance. cacheDB and cache are nil
// when caching is disabled; backendURL is empty when solving locally.
func NewSystemHandlers(log zerolog.Logger, cacheDB *database.DB, cache CacheStatsProvider, backendURL string) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("service", "system").Logger(),
		startupTime: time.Now(),
		cacheDB:     cacheDB,
		cache:       cache,
		backendURL:  backendURL,
		sample:      100 * time.Millisecond,
	}
}

// CacheStatus describes the result cache
type CacheStatus struct {
	Enabled      bool               `json:"enabled"`
	Stats        *resultcache.Stats `json:"stats,omitempty"`
	SizeBytes    int64              `json:"size_bytes,omitempty"`
	WALSizeBytes int64              `json:"wal_size_bytes,omitempty"`
}

// BackendStatus describes the upstream proxy
type BackendStatus struct {
	Proxy bool   `json:"proxy"`
	URL   string `json:"url,omitempty"`
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string        `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64         `json:"uptime_seconds"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
	Cache         CacheStatus   `json:"cache"`
	Backend       BackendStatus `json:"backend"`
}

// HandleSystemStatus returns system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Backend: BackendStatus{
			Proxy: h.backendURL != "",
			URL:   h.backendURL,
		},
	}

	if h.cacheDB != nil {
		response.Cache.Enabled = true
		if err := h.cacheDB.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("Cache database check failed")
			response.Status = "degraded"
		} else if dbStats, err := h.cacheDB.GetStats(); err == nil {
			response.Cache.SizeBytes = dbStats.SizeBytes
			response.Cache.WALSizeBytes = dbStats.WALSizeBytes
		}
	}
	if h.cache != nil {
		stats, err := h.cache.Stats(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read cache stats")
			response.Status = "degraded"
		} else {
			response.Cache.Stats = stats
		}
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages
// A short sample interval keeps the endpoint responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(h.sample, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
