// Package handlers provides HTTP handlers for stake optimisation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aristath/stakealloc/internal/clients/backend"
	"github.com/aristath/stakealloc/internal/modules/optimizer"
	"github.com/aristath/stakealloc/internal/modules/strategies"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies; batches are the largest payloads.
const maxBodyBytes = 4 << 20

const (
	headerSolveID = "X-Solve-ID"
	headerCache   = "X-Cache"
)

// Optimizer is the solving surface used by the handlers.
type Optimizer interface {
	Optimize(ctx context.Context, req *optimizer.Request) (*optimizer.Response, error)
	Cascade(ctx context.Context, req *optimizer.Request) (*optimizer.Response, error)
	OptimizeBatch(ctx context.Context, reqs []optimizer.Request) ([]optimizer.BatchItem, error)
}

// Proxy forwards raw optimisation requests to an upstream backend.
type Proxy interface {
	Optimize(ctx context.Context, body []byte) (*backend.Response, error)
}

// StrategySource lists the strategy presets.
type StrategySource interface {
	All() []strategies.Strategy
}

// BatchRequest is the body of POST /optimize/batch
type BatchRequest struct {
	Requests []optimizer.Request `json:"requests"`
}

// BatchResponse is the reply of POST /optimize/batch
type BatchResponse struct {
	Results []optimizer.BatchItem `json:"results"`
}

// Handler handles optimisation HTTP requests
type Handler struct {
	optimizer  Optimizer
	proxy      Proxy
	strategies StrategySource
	log        zerolog.Logger
}

// NewHandler creates a new optimisation handler. proxy may be nil, in which case
// requests are solved locally.
func NewHandler(opt Optimizer, proxy Proxy, strats StrategySource, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer:  opt,
		proxy:      proxy,
		strategies: strats,
		log:        log.With().Str("handler", "optimizer").Logger(),
	}
}

// RegisterRoutes registers the optimisation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/strategies", h.HandleGetStrategies)
	r.Route("/optimize", func(r chi.Router) {
		r.Post("/", h.HandleOptimize)
		r.Post("/auto", h.HandleOptimizeAuto)
		r.Post("/batch", h.HandleOptimizeBatch)
	})
}

// HandleOptimize solves one request, or forwards it when a backend is configured.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}

	if h.proxy != nil {
		h.forward(w, r, body)
		return
	}

	var req optimizer.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}

	resp, err := h.optimizer.Optimize(r.Context(), &req)
	h.writeResult(w, resp, err)
}

// HandleOptimizeAuto runs the requested mode and the preset strategies, returning the
// first that reaches the budget.
func (h *Handler) HandleOptimizeAuto(w http.ResponseWriter, r *http.Request) {
	var req optimizer.Request
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.optimizer.Cascade(r.Context(), &req)
	h.writeResult(w, resp, err)
}

// HandleOptimizeBatch solves many requests in parallel
func (h *Handler) HandleOptimizeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	items, err := h.optimizer.OptimizeBatch(r.Context(), req.Requests)
	if err != nil {
		h.writeResult(w, nil, err)
		return
	}

	h.writeJSON(w, http.StatusOK, BatchResponse{Results: items})
}

// HandleGetStrategies returns the strategy presets in recommendation order
func (h *Handler) HandleGetStrategies(w http.ResponseWriter, r *http.Request) {
	list := []strategies.Strategy{}
	if h.strategies != nil {
		list = h.strategies.All()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": list,
	})
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, body []byte) {
	resp, err := h.proxy.Optimize(r.Context(), body)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reach optimization backend")
		h.writeError(w, http.StatusBadGateway, "Unable to reach optimization backend.")
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.log.Error().Err(err).Msg("Failed to write proxied response")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload.")
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, resp *optimizer.Response, err error) {
	if err != nil {
		status := optimizer.StatusCode(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Int("status", status).Msg("Optimisation failed")
		}
		var verr *optimizer.ValidationError
		if errors.As(err, &verr) {
			h.log.Debug().Str("field", verr.Field).Msg(verr.Message)
		}
		h.writeJSON(w, status, optimizer.ErrorResponse(optimizer.Notes(err)...))
		return
	}

	if resp.SolveID != "" {
		w.Header().Set(headerSolveID, resp.SolveID)
	}
	if resp.Cached {
		w.Header().Set(headerCache, "HIT")
	} else {
		w.Header().Set(headerCache, "MISS")
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, note string) {
	h.writeJSON(w, status, optimizer.ErrorResponse(note))
}
