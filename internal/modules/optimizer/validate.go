package optimizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aristath/stakealloc/internal/modules/allocation"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
)

// maxBudget keeps every stake representable in the solvers' int32 back-pointers.
const maxBudget = math.MaxInt32

// Limits are the deployment bounds applied during validation.
type Limits struct {
	MinBudget     int
	MaxCandidates int
	DefaultFilter allocation.StakeFilter
}

// solveInput is a validated, normalised request ready for dispatch.
type solveInput struct {
	mode       Mode
	params     ModeParams
	budget     int
	candidates []allocation.Candidate
	filter     allocation.StakeFilter
	notes      []string
}

func (in *solveInput) names() []string {
	return lo.Map(in.candidates, func(c allocation.Candidate, _ int) string { return c.Name })
}

// validate checks req field by field; the first failure wins.
func validate(req *Request, limits Limits) (*solveInput, error) {
	budget, err := parseBudget(req.Budget, limits.MinBudget)
	if err != nil {
		return nil, err
	}

	if len(req.Candidates) == 0 {
		return nil, invalid("candidates", "At least one candidate is required.")
	}
	if limits.MaxCandidates > 0 && len(req.Candidates) > limits.MaxCandidates {
		return nil, invalid("candidates", "At most %d candidates are supported.", limits.MaxCandidates)
	}
	if req.Rounding != "floor" {
		return nil, invalid("rounding", "Only floor rounding is supported.")
	}

	in := &solveInput{budget: budget}
	seen := make(map[string]bool, len(req.Candidates))
	for i, c := range req.Candidates {
		field := fmt.Sprintf("candidates[%d]", i)
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, invalid(field+".name", "Candidate name is required.")
		}
		if seen[name] {
			in.notes = append(in.notes, fmt.Sprintf("Duplicate candidate name detected: %s.", name))
		}
		seen[name] = true

		if c.P == nil || math.IsNaN(*c.P) || math.IsInf(*c.P, 0) || *c.P < 0 {
			return nil, invalid(field+".p", "Invalid probability for %s.", name)
		}

		ratio, err := parseMultiplier(c.M)
		if err != nil {
			return nil, invalid(field+".m", "Invalid multiplier for %s.", name)
		}
		if _, ok := allocation.MaxPayout(ratio, budget); !ok {
			return nil, invalid(field+".m", "Multiplier for %s is too large for a budget of %d.", name, budget)
		}

		in.candidates = append(in.candidates, allocation.Candidate{Name: name, P: *c.P, Multiplier: ratio})
	}

	raw, err := decodeParams(req.Params)
	if err != nil {
		return nil, err
	}

	probs := lo.Map(in.candidates, func(c allocation.Candidate, _ int) float64 { return c.P })
	in.notes = append(in.notes, normalizeProbabilities(probs, raw.normalizeRequested())...)
	for i := range in.candidates {
		in.candidates[i].P = probs[i]
	}

	in.filter, err = stakeFilter(raw, limits.DefaultFilter)
	if err != nil {
		return nil, err
	}

	mode := Mode(req.Mode)
	if mode == ModeFrontierGenerate {
		return nil, &UnsupportedModeError{Mode: req.Mode, Message: "frontier_generate is not supported by this server."}
	}
	if !mode.Known() {
		return nil, &UnsupportedModeError{Mode: req.Mode, Message: fmt.Sprintf("Unknown mode: %s", req.Mode)}
	}
	in.mode = mode

	params, notes, err := typedParams(mode, raw)
	if err != nil {
		return nil, err
	}
	in.params = params
	in.notes = append(in.notes, notes...)

	return in, nil
}

func parseBudget(n json.Number, minBudget int) (int, error) {
	errBudget := invalid("budget", "Budget must be a positive integer.")
	if n == "" {
		return 0, errBudget
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f <= 0 {
		return 0, errBudget
	}
	if f > maxBudget {
		return 0, invalid("budget", "Budget must not exceed %d.", maxBudget)
	}
	budget := int(f)
	if budget < minBudget {
		return 0, invalid("budget", "Budget must be at least %d.", minBudget)
	}
	return budget, nil
}

// parseMultiplier accepts a JSON string, parsed exactly, or a JSON number, which is
// taken at its float64 value like any other JSON number.
func parseMultiplier(raw json.RawMessage) (allocation.Ratio, error) {
	text := bytes.TrimSpace(raw)
	if len(text) > 0 && text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return allocation.Ratio{}, err
		}
		return allocation.ParseRatio(s)
	}
	var f float64
	if err := json.Unmarshal(text, &f); err != nil {
		return allocation.Ratio{}, err
	}
	return allocation.ParseRatioFloat(f)
}

func decodeParams(data json.RawMessage) (rawParams, error) {
	var raw rawParams
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return raw, nil
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return raw, invalid("params", "Params must be an object.")
	}
	return raw, nil
}

// normalizeProbabilities rescales p in place and returns the notes describing what happened.
// An explicit flag divides by the sum; otherwise a sum in (1.5, 100.5] is read as percentages.
func normalizeProbabilities(p []float64, requested bool) []string {
	var notes []string
	sum := floats.Sum(p)
	switch {
	case requested:
		if sum > 0 {
			for i := range p {
				p[i] /= sum
			}
			notes = append(notes, "Probabilities normalized to sum to 1.")
			sum = 1
		}
	case sum > 1.5 && sum <= 100.5:
		for i := range p {
			p[i] /= 100
		}
		notes = append(notes, "Probabilities interpreted as percent inputs.")
		sum = floats.Sum(p)
	}

	if math.Abs(sum-1) > 0.01 {
		notes = append(notes, fmt.Sprintf("Probabilities sum to %.4f. Using values as-is.", sum))
	}
	return notes
}

func stakeFilter(raw rawParams, defaults allocation.StakeFilter) (allocation.StakeFilter, error) {
	filter := defaults
	if raw.MinStake.Valid {
		v, ok := nonNegativeInt(raw.MinStake.Value)
		if !ok {
			return filter, invalid("params.minStake", "minStake must be a non-negative integer.")
		}
		filter.Min = v
	}
	if raw.MaxStake.Valid {
		v, ok := nonNegativeInt(raw.MaxStake.Value)
		if !ok {
			return filter, invalid("params.maxStake", "maxStake must be a non-negative integer.")
		}
		filter.Max = v
	}
	if filter.Max > 0 && filter.Min > filter.Max {
		return filter, invalid("params.minStake", "minStake must not exceed maxStake.")
	}
	return filter, nil
}

func nonNegativeInt(v float64) (int, bool) {
	if v < 0 || v != math.Trunc(v) || v > maxBudget {
		return 0, false
	}
	return int(v), true
}

// fraction reads a probability-like parameter given either as a fraction or as a percent.
func fraction(name string, n Number) (float64, []string, error) {
	if !n.Valid {
		return 0, nil, invalid("params."+name, "%s is required.", name)
	}
	v := n.Value
	var notes []string
	if v > 1 && v <= 100 {
		v /= 100
		notes = append(notes, name+" interpreted as percent.")
	}
	if v < 0 || v > 1 {
		return 0, nil, invalid("params."+name, "%s must be between 0 and 1.", name)
	}
	return v, notes, nil
}

func typedParams(mode Mode, raw rawParams) (ModeParams, []string, error) {
	switch mode {
	case ModeEVUnderMaxLoss, ModeLossLimit:
		name, value := "maxLossPct", raw.MaxLossPct
		if !value.Valid && raw.MaxLossPercent.Valid {
			name, value = "maxLossPercent", raw.MaxLossPercent
		}
		x, notes, err := fraction(name, value)
		if err != nil {
			return nil, nil, err
		}
		return MaxLossParams{For: mode, MaxLoss: x}, notes, nil

	case ModeEVUnderLossProbCap:
		x, notes, err := fraction("lossProbCap", raw.LossProbCap)
		if err != nil {
			return nil, nil, err
		}
		return LossProbCapParams{Cap: x}, notes, nil

	case ModeShortfallPenalty:
		x, notes, err := fraction("shortfallPenalty", raw.ShortfallPenalty)
		if err != nil {
			return nil, nil, err
		}
		return ShortfallParams{Penalty: x}, notes, nil

	case ModeMaximizeProbTarget:
		if !raw.TargetT.Valid {
			return nil, nil, invalid("params.targetT", "targetT is required.")
		}
		t := raw.TargetT.Value
		if t < 0 || t != math.Trunc(t) || t > float64(allocation.MaxExactPayout) {
			return nil, nil, invalid("params.targetT", "targetT must be a non-negative integer.")
		}
		return ProbTargetParams{Target: int64(t)}, nil, nil

	case ModeSparseKFocus:
		if !raw.KSparse.Valid {
			return nil, nil, invalid("params.kSparse", "kSparse is required.")
		}
		k := raw.KSparse.Value
		if k < 1 || k != math.Trunc(k) || k > maxBudget {
			return nil, nil, invalid("params.kSparse", "kSparse must be an integer >= 1.")
		}
		return SparseParams{K: int(k)}, nil, nil
	}
	return NoParams{For: mode}, nil, nil
}
