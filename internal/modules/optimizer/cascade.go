package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// commonParams are carried from the caller's request into every cascaded mode.
var commonParams = []string{"normalizeProb", "minStake", "maxStake"}

// Cascade solves the requested mode and every preset strategy, then picks the response to
// show: the first (requested mode first, then presets in priority order) whose EV reaches
// the budget; otherwise the requested mode if it solved; otherwise the best-EV solution;
// otherwise the last infeasible one. When nothing solved the last error is returned.
func (s *Service) Cascade(ctx context.Context, req *Request) (*Response, error) {
	requested := Mode(req.Mode)
	modes := []Mode{requested}
	reqs := []*Request{req}
	if s.presets != nil {
		for _, id := range s.presets.IDs() {
			mode := Mode(id)
			if mode == requested {
				continue
			}
			defaults, _ := s.presets.Defaults(id)
			params, err := presetParams(req.Params, defaults)
			if err != nil {
				return nil, err
			}
			alt := *req
			alt.Mode = id
			alt.Params = params
			modes = append(modes, mode)
			reqs = append(reqs, &alt)
		}
	}

	outcomes := make([]outcome, len(reqs))
	g := errgroup.Group{}
	g.SetLimit(s.pool.numWorkers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			resp, err := s.Optimize(ctx, reqs[i])
			outcomes[i] = outcome{resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	budget, _ := req.Budget.Float64()
	picked := pickOutcome(modes, outcomes, budget)
	if picked.err != nil {
		return nil, picked.err
	}

	s.log.Debug().
		Str("requested", string(requested)).
		Str("selected", picked.resp.Mode).
		Msg("Cascade finished")
	return picked.resp, nil
}

func pickOutcome(modes []Mode, outcomes []outcome, budget float64) outcome {
	var bestOK, lastInfeasible, lastError *outcome
	for i := range outcomes {
		o := &outcomes[i]
		switch {
		case o.err != nil:
			lastError = o
			continue
		case o.resp.Status == StatusInfeasible:
			lastInfeasible = o
			continue
		case o.resp.Status != StatusOK || o.resp.Metrics == nil:
			continue
		}

		ev := o.resp.Metrics.EV
		if bestOK == nil || ev > bestOK.resp.Metrics.EV {
			bestOK = o
		}
		if ev >= budget {
			if i > 0 {
				o.resp.Notes = append(o.resp.Notes,
					fmt.Sprintf("Switched from %s to %s: %s", modes[0], modes[i], switchReason(outcomes[0], budget)),
					fmt.Sprintf("Expected value of %s: %.1f.", modes[i], ev))
			}
			return *o
		}
	}

	first := outcomes[0]
	if first.err == nil && first.resp.Status == StatusOK {
		first.resp.Notes = append(first.resp.Notes,
			"No mode reaches an expected value at or above the budget; showing the requested mode.")
		return first
	}
	if bestOK != nil {
		bestOK.resp.Notes = append(bestOK.resp.Notes,
			fmt.Sprintf("Requested mode %s could not be solved; showing %s (expected value %.1f).", modes[0], bestOK.resp.Mode, bestOK.resp.Metrics.EV),
			"No mode reaches an expected value at or above the budget.")
		return *bestOK
	}
	if lastInfeasible != nil {
		return *lastInfeasible
	}
	if lastError != nil {
		return *lastError
	}
	return outcome{err: errors.New("cascade produced no result")}
}

func switchReason(requested outcome, budget float64) string {
	switch {
	case requested.err != nil:
		return "the requested mode failed."
	case requested.resp.Status == StatusInfeasible:
		return "the requested mode is infeasible under the current constraints."
	case requested.resp.Metrics != nil:
		return fmt.Sprintf("its expected value %.1f is below the budget %.0f.", requested.resp.Metrics.EV, budget)
	}
	return "the requested mode has no expected value."
}

// presetParams keeps the caller's common parameters and adds the preset defaults.
func presetParams(original json.RawMessage, defaults map[string]float64) (json.RawMessage, error) {
	merged := make(map[string]json.RawMessage, len(defaults)+len(commonParams))
	trimmed := bytes.TrimSpace(original)
	if len(trimmed) > 0 && string(trimmed) != "null" {
		var all map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &all); err != nil {
			return nil, invalid("params", "Params must be an object.")
		}
		for _, key := range commonParams {
			if v, ok := all[key]; ok {
				merged[key] = v
			}
		}
	}
	for key, value := range defaults {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = data
	}
	return json.Marshal(merged)
}
