package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/stakealloc/internal/resultcache"
	testutil "github.com/aristath/stakealloc/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
}

type failingStats struct{}

func (failingStats) Stats(ctx context.Context) (*resultcache.Stats, error) {
	return nil, errors.New("database is locked")
}

func newTestServer(system *SystemHandlers) *Server {
	return New(Config{
		Log:            zerolog.Nop(),
		Port:           0,
		DevMode:        true,
		AllowedOrigins: []string{"http://allowed.test"},
		RequestTimeout: 5 * time.Second,
		System:         system,
		Modules:        []RouteRegistrar{pingModule{}},
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(nil)

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "stakealloc", body["service"])
	assert.Equal(t, Version, body["version"])
}

func TestModuleRoutesMounted(t *testing.T) {
	s := newTestServer(nil)

	assert.Equal(t, http.StatusNoContent, get(t, s.Handler(), "/api/ping").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/api/system/status").Code)
}

func TestRecoverer(t *testing.T) {
	s := newTestServer(nil)
	assert.Equal(t, http.StatusInternalServerError, get(t, s.Handler(), "/api/panic").Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
	req.Header.Set("Origin", "http://allowed.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://allowed.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSystemStatus_WithCache(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "cache")
	defer cleanup()
	repo := resultcache.NewRepository(db.Conn())
	require.NoError(t, repo.Store(context.Background(), "k", "maximize_ev", "id", []byte("x"), time.Hour))

	system := NewSystemHandlers(zerolog.Nop(), db, repo, "http://backend:8000")
	system.sample = 10 * time.Millisecond
	s := newTestServer(system)

	rec := get(t, s.Handler(), "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Cache.Enabled)
	require.NotNil(t, body.Cache.Stats)
	assert.Equal(t, int64(1), body.Cache.Stats.Entries)
	assert.True(t, body.Backend.Proxy)
	assert.Equal(t, "http://backend:8000", body.Backend.URL)
}

func TestSystemStatus_NoCache(t *testing.T) {
	system := NewSystemHandlers(zerolog.Nop(), nil, nil, "")
	system.sample = 10 * time.Millisecond
	s := newTestServer(system)

	rec := get(t, s.Handler(), "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Cache.Enabled)
	assert.False(t, body.Backend.Proxy)
}

func TestSystemStatus_DegradedOnCacheError(t *testing.T) {
	system := NewSystemHandlers(zerolog.Nop(), nil, failingStats{}, "")
	system.sample = 10 * time.Millisecond
	s := newTestServer(system)

	var body SystemStatusResponse
	rec := get(t, s.Handler(), "/api/system/status")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
}
