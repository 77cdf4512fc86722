// Package optimizer validates optimisation requests and dispatches them to the allocation solvers.
package optimizer

import (
	"context"
	"time"

	"github.com/aristath/stakealloc/internal/modules/allocation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the service limits.
type Config struct {
	Limits
	MaxBitmaskCandidates int
	MaxSolverMemoryMB    int
	SolveTimeout         time.Duration
	CacheTTL             time.Duration
	BatchWorkers         int
	MaxBatchSize         int
}

// PresetSource provides the strategy presets used by the auto cascade.
type PresetSource interface {
	IDs() []string
	Defaults(id string) (map[string]float64, bool)
}

// Service validates requests, guards problem size and runs the solvers.
type Service struct {
	cfg     Config
	guard   *Guard
	cache   BlobStore
	presets PresetSource
	pool    *WorkerPool
	log     zerolog.Logger
}

// NewService creates a new optimizer service. cache and presets may be nil.
func NewService(cfg Config, cache BlobStore, presets PresetSource, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		guard:   NewGuard(cfg.MaxBitmaskCandidates, cfg.MaxSolverMemoryMB),
		cache:   cache,
		presets: presets,
		pool:    NewWorkerPool(cfg.BatchWorkers),
		log:     log.With().Str("service", "optimizer").Logger(),
	}
}

// Optimize validates req and solves it. Infeasibility is reported in the response; the error
// is a *ValidationError, ErrUnsupportedMode, ErrProblemTooLarge or a context error.
func (s *Service) Optimize(ctx context.Context, req *Request) (*Response, error) {
	in, err := validate(req, s.cfg.Limits)
	if err != nil {
		return nil, err
	}
	return s.solve(ctx, in)
}

func (s *Service) solve(ctx context.Context, in *solveInput) (*Response, error) {
	var key string
	if s.cache != nil {
		key = in.Fingerprint()
		if resp := s.lookup(ctx, key); resp != nil {
			return resp, nil
		}
	}

	if err := s.guard.Check(in); err != nil {
		return nil, err
	}

	solveID := uuid.NewString()
	log := s.log.With().
		Str("solve_id", solveID).
		Str("mode", string(in.mode)).
		Int("budget", in.budget).
		Int("candidates", len(in.candidates)).
		Logger()

	if s.cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SolveTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := dispatch(ctx, in)
	if err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Solve aborted")
		return nil, err
	}
	resp.SolveID = solveID

	log.Debug().
		Str("status", resp.Status).
		Str("solver", resp.Solver).
		Dur("elapsed", time.Since(start)).
		Msg("Solve completed")

	if s.cache != nil {
		s.remember(ctx, key, resp)
	}
	return resp, nil
}

// lookup returns a fresh cached response or nil. Cache failures never fail a solve.
func (s *Service) lookup(ctx context.Context, key string) *Response {
	data, err := s.cache.GetIfFresh(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("fingerprint", key).Msg("Failed to read cached response")
		return nil
	}
	if data == nil {
		return nil
	}
	resp, err := decodeResponse(data)
	if err != nil {
		s.log.Warn().Err(err).Str("fingerprint", key).Msg("Discarding undecodable cached response")
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("fingerprint", key).Msg("Failed to delete cached response")
		}
		return nil
	}
	resp.Cached = true
	s.log.Debug().Str("fingerprint", key).Str("solve_id", resp.SolveID).Msg("Cache hit")
	return resp
}

func (s *Service) remember(ctx context.Context, key string, resp *Response) {
	data, err := encodeResponse(resp)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode response for cache")
		return
	}
	if err := s.cache.Store(ctx, key, resp.Mode, resp.SolveID, data, s.cfg.CacheTTL); err != nil {
		s.log.Warn().Err(err).Str("fingerprint", key).Msg("Failed to cache response")
	}
}

// dispatch runs the solver for in.mode and shapes the response.
func dispatch(ctx context.Context, in *solveInput) (*Response, error) {
	pr, err := allocation.NewProblem(in.budget, in.candidates, in.filter)
	if err != nil {
		return nil, invalid("candidates", "%s", err.Error())
	}

	notes := append([]string(nil), in.notes...)
	status := StatusOK
	solver := in.mode
	var target *int64
	var sol allocation.Solution
	infeasibleNote := "No allocation satisfies the stake limits."

	switch p := in.params.(type) {
	case MaxLossParams:
		floor := p.MinPayout(in.budget)
		sol, err = allocation.EVWithMinPayout(ctx, pr, &floor)
		infeasibleNote = "No allocation satisfies the max loss constraint."
	case LossProbCapParams:
		sol, err = allocation.EVUnderLossCap(ctx, pr, p.Cap)
		infeasibleNote = "No allocation satisfies the loss probability cap."
	case ProbTargetParams:
		t := p.Target
		target = &t
		sol, err = allocation.MaximizeProbTarget(ctx, pr, t)
	case SparseParams:
		sol, err = allocation.SparseKFocus(ctx, pr, p.K)
		infeasibleNote = "No allocation satisfies the sparsity constraint."
	case ShortfallParams:
		sol, err = allocation.ExpectedUtility(ctx, pr, allocation.ShortfallUtility(in.budget, p.Penalty))
	default:
		switch in.mode {
		case ModeAllWeatherMaximin:
			sol, err = allocation.AllWeatherMaximin(ctx, pr)
		case ModeHedgeBreakevenThenEV:
			floor := int64(in.budget)
			sol, err = allocation.EVWithMinPayout(ctx, pr, &floor)
			if err == nil && !sol.Feasible {
				status = StatusInfeasible
				notes = append(notes, "No solution satisfies G >= B. Returning all-weather fallback.")
				solver = ModeAllWeatherMaximin
				sol, err = allocation.AllWeatherMaximin(ctx, pr)
			}
		case ModeMaximizeEV:
			sol, err = allocation.EVWithMinPayout(ctx, pr, nil)
		case ModeBalancedProfit:
			sol, err = allocation.ExpectedUtility(ctx, pr, allocation.LogUtility())
		case ModeMaxProbFocus:
			sol = allocation.MaxProbFocus(pr)
		}
	}
	if err != nil {
		return nil, err
	}

	resp := &Response{Status: status, Mode: string(in.mode), Solver: string(solver)}
	if !sol.Feasible {
		resp.Status = StatusInfeasible
		resp.Notes = append(notes, infeasibleNote)
		return resp, nil
	}

	fillResult(resp, in.names(), allocation.BuildResult(pr, sol.Allocation, target))
	if len(notes) > 0 {
		resp.Notes = notes
	}
	return resp, nil
}

func fillResult(resp *Response, names []string, res allocation.Result) {
	resp.Allocation = make([]AllocationEntry, len(names))
	resp.PayoutByOutcome = make([]PayoutEntry, len(names))
	for i, name := range names {
		resp.Allocation[i] = AllocationEntry{Name: name, Stake: res.Allocation[i]}
		resp.PayoutByOutcome[i] = PayoutEntry{Name: name, Payout: res.Payouts[i]}
	}
	m := res.Metrics
	resp.Metrics = &Metrics{
		G:     m.WorstCase,
		EV:    m.EV,
		EP:    m.EP,
		PLoss: m.LossProb,
		PGeT:  m.TargetProb,
		Var:   m.PayoutVar,
	}
}
