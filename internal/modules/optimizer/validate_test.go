package optimizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/aristath/stakealloc/internal/modules/allocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = Limits{MinBudget: 1, MaxCandidates: 64}

type cand struct {
	name string
	p    float64
	m    string // raw JSON: `"1.8"` or `1.8`
}

// newRequest builds a request the way a client would send it, through JSON.
func newRequest(t *testing.T, budget string, mode string, params string, candidates ...cand) *Request {
	t.Helper()
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf(`{"name":%q,"p":%v,"m":%s}`, c.name, c.p, c.m)
	}
	if params == "" {
		params = "{}"
	}
	body := fmt.Sprintf(`{"budget":%s,"candidates":[%s],"rounding":"floor","mode":%q,"params":%s}`,
		budget, strings.Join(parts, ","), mode, params)

	var req Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func evenPair(m string) []cand {
	return []cand{{"A", 0.5, m}, {"B", 0.5, m}}
}

func requireValidationError(t *testing.T, err error, field string) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %T: %v", err, err)
	assert.Equal(t, field, vErr.Field)
	return vErr
}

func TestParseMultiplier(t *testing.T) {
	exact, err := parseMultiplier(json.RawMessage(`"1.00000000000000000001"`))
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000001/100000000000000000000", exact.String())

	// numbers carry float64 precision, so the same digits collapse to 1
	number, err := parseMultiplier(json.RawMessage(`1.00000000000000000001`))
	require.NoError(t, err)
	assert.Equal(t, "1/1", number.String())

	number, err = parseMultiplier(json.RawMessage(`1.8`))
	require.NoError(t, err)
	assert.Equal(t, "9/5", number.String())

	_, err = parseMultiplier(json.RawMessage(`true`))
	assert.Error(t, err)
	_, err = parseMultiplier(json.RawMessage(`null`))
	assert.Error(t, err)
}

func TestValidate_Accepts(t *testing.T) {
	req := newRequest(t, "100", "all_weather_maximin", "", cand{"  A ", 0.5, `"1.8"`}, cand{"B", 0.5, `2.5e1`})

	in, err := validate(req, testLimits)
	require.NoError(t, err)
	assert.Equal(t, 100, in.budget)
	assert.Equal(t, ModeAllWeatherMaximin, in.mode)
	assert.Equal(t, []string{"A", "B"}, in.names())
	assert.Equal(t, "9/5", in.candidates[0].Multiplier.String())
	assert.Equal(t, "25/1", in.candidates[1].Multiplier.String())
	assert.Equal(t, NoParams{For: ModeAllWeatherMaximin}, in.params)
	assert.Empty(t, in.notes)
}

func TestValidate_Rejects(t *testing.T) {
	pair := evenPair(`"2"`)
	testCases := []struct {
		name  string
		req   *Request
		field string
	}{
		{"zero budget", newRequest(t, "0", "maximize_ev", "", pair...), "budget"},
		{"fractional budget", newRequest(t, "12.5", "maximize_ev", "", pair...), "budget"},
		{"missing budget", newRequest(t, "null", "maximize_ev", "", pair...), "budget"},
		{"no candidates", newRequest(t, "10", "maximize_ev", ""), "candidates"},
		{"blank name", newRequest(t, "10", "maximize_ev", "", cand{"  ", 0.5, `"2"`}), "candidates[0].name"},
		{"negative probability", newRequest(t, "10", "maximize_ev", "", cand{"A", -0.1, `"2"`}), "candidates[0].p"},
		{"bad multiplier", newRequest(t, "10", "maximize_ev", "", cand{"A", 1, `"abc"`}), "candidates[0].m"},
		{"zero multiplier", newRequest(t, "10", "maximize_ev", "", cand{"A", 1, `0`}), "candidates[0].m"},
		{"negative multiplier", newRequest(t, "10", "maximize_ev", "", cand{"A", 1, `"-1.5"`}), "candidates[0].m"},
		{"signed multiplier", newRequest(t, "10", "maximize_ev", "", cand{"A", 1, `"+2"`}), "candidates[0].m"},
		{"bare fraction multiplier", newRequest(t, "10", "maximize_ev", "", cand{"A", 1, `".5"`}), "candidates[0].m"},
		{"multiplier overflows payouts", newRequest(t, "1000", "maximize_ev", "", cand{"A", 1, `"1e20"`}), "candidates[0].m"},
		{"sparse without k", newRequest(t, "10", "sparse_k_focus", "", pair...), "params.kSparse"},
		{"sparse with zero k", newRequest(t, "10", "sparse_k_focus", `{"kSparse":0}`, pair...), "params.kSparse"},
		{"sparse with fractional k", newRequest(t, "10", "sparse_k_focus", `{"kSparse":1.5}`, pair...), "params.kSparse"},
		{"negative target", newRequest(t, "10", "maximize_prob_ge_target", `{"targetT":-1}`, pair...), "params.targetT"},
		{"loss above percent range", newRequest(t, "10", "beast_ev_under_maxloss", `{"maxLossPct":150}`, pair...), "params.maxLossPct"},
		{"negative loss", newRequest(t, "10", "loss_limit", `{"maxLossPercent":-0.1}`, pair...), "params.maxLossPercent"},
		{"non numeric cap", newRequest(t, "10", "ev_under_lossprob_cap", `{"lossProbCap":"abc"}`, pair...), "params.lossProbCap"},
		{"min above max stake", newRequest(t, "10", "maximize_ev", `{"minStake":5,"maxStake":3}`, pair...), "params.minStake"},
		{"params not an object", newRequest(t, "10", "maximize_ev", `[1,2]`, pair...), "params"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validate(tc.req, testLimits)
			requireValidationError(t, err, tc.field)
		})
	}
}

func TestValidate_Rounding(t *testing.T) {
	req := newRequest(t, "10", "maximize_ev", "", evenPair(`"2"`)...)
	req.Rounding = "ceil"

	_, err := validate(req, testLimits)
	vErr := requireValidationError(t, err, "rounding")
	assert.Equal(t, "Only floor rounding is supported.", vErr.Message)
}

func TestValidate_Limits(t *testing.T) {
	req := newRequest(t, "5", "maximize_ev", "", evenPair(`"2"`)...)
	_, err := validate(req, Limits{MinBudget: 10})
	requireValidationError(t, err, "budget")

	req = newRequest(t, "10", "maximize_ev", "", cand{"A", 0.3, `2`}, cand{"B", 0.3, `2`}, cand{"C", 0.4, `2`})
	_, err = validate(req, Limits{MaxCandidates: 2})
	requireValidationError(t, err, "candidates")
}

func TestValidate_UnsupportedMode(t *testing.T) {
	for _, mode := range []string{"no_such_mode", "frontier_generate", ""} {
		t.Run(mode, func(t *testing.T) {
			_, err := validate(newRequest(t, "10", mode, "", evenPair(`"2"`)...), testLimits)
			assert.ErrorIs(t, err, ErrUnsupportedMode)
		})
	}

	_, err := validate(newRequest(t, "10", "no_such_mode", "", evenPair(`"2"`)...), testLimits)
	assert.Equal(t, []string{"Unknown mode: no_such_mode"}, Notes(err))
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestValidate_ProbabilityNotes(t *testing.T) {
	t.Run("percent inputs", func(t *testing.T) {
		in, err := validate(newRequest(t, "10", "maximize_ev", "", cand{"A", 60, `2`}, cand{"B", 40, `2`}), testLimits)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, in.candidates[0].P, 1e-12)
		assert.InDelta(t, 0.4, in.candidates[1].P, 1e-12)
		assert.Equal(t, []string{"Probabilities interpreted as percent inputs."}, in.notes)
	})

	t.Run("explicit normalisation", func(t *testing.T) {
		in, err := validate(newRequest(t, "10", "maximize_ev", `{"normalizeProb":true}`,
			cand{"A", 1, `2`}, cand{"B", 1, `2`}, cand{"C", 2, `2`}), testLimits)
		require.NoError(t, err)
		assert.InDelta(t, 0.25, in.candidates[0].P, 1e-12)
		assert.InDelta(t, 0.5, in.candidates[2].P, 1e-12)
		assert.Equal(t, []string{"Probabilities normalized to sum to 1."}, in.notes)
	})

	t.Run("truthy strings do not normalise", func(t *testing.T) {
		in, err := validate(newRequest(t, "10", "maximize_ev", `{"normalizeProb":"true"}`,
			cand{"A", 0.2, `2`}, cand{"B", 0.3, `2`}), testLimits)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, in.candidates[0].P, 1e-12)
		assert.Equal(t, []string{"Probabilities sum to 0.5000. Using values as-is."}, in.notes)
	})

	t.Run("duplicate names", func(t *testing.T) {
		in, err := validate(newRequest(t, "10", "maximize_ev", "", cand{"A", 0.5, `2`}, cand{"A", 0.5, `2`}), testLimits)
		require.NoError(t, err)
		assert.Equal(t, []string{"Duplicate candidate name detected: A."}, in.notes)
	})
}

func TestValidate_TypedParams(t *testing.T) {
	pair := evenPair(`"2"`)

	in, err := validate(newRequest(t, "10", "beast_ev_under_maxloss", `{"maxLossPct":30}`, pair...), testLimits)
	require.NoError(t, err)
	assert.Equal(t, MaxLossParams{For: ModeEVUnderMaxLoss, MaxLoss: 0.3}, in.params)
	assert.Equal(t, []string{"maxLossPct interpreted as percent."}, in.notes)
	assert.Equal(t, int64(7), in.params.(MaxLossParams).MinPayout(10))

	in, err = validate(newRequest(t, "10", "loss_limit", `{"maxLossPercent":"0.25"}`, pair...), testLimits)
	require.NoError(t, err)
	assert.Equal(t, MaxLossParams{For: ModeLossLimit, MaxLoss: 0.25}, in.params)

	in, err = validate(newRequest(t, "10", "ev_under_lossprob_cap", `{"lossProbCap":0.2}`, pair...), testLimits)
	require.NoError(t, err)
	assert.Equal(t, LossProbCapParams{Cap: 0.2}, in.params)

	in, err = validate(newRequest(t, "10", "maximize_prob_ge_target", `{"targetT":"15"}`, pair...), testLimits)
	require.NoError(t, err)
	assert.Equal(t, ProbTargetParams{Target: 15}, in.params)

	in, err = validate(newRequest(t, "10", "sparse_k_focus", `{"kSparse":2}`, pair...), testLimits)
	require.NoError(t, err)
	assert.Equal(t, SparseParams{K: 2}, in.params)

	in, err = validate(newRequest(t, "10", "ev_with_shortfall_penalty", `{"shortfallPenalty":50}`, pair...), testLimits)
	require.NoError(t, err)
	assert.Equal(t, ShortfallParams{Penalty: 0.5}, in.params)
	assert.Equal(t, []string{"shortfallPenalty interpreted as percent."}, in.notes)
}

func TestValidate_StakeFilter(t *testing.T) {
	limits := testLimits
	limits.DefaultFilter = allocation.StakeFilter{Min: 10}

	in, err := validate(newRequest(t, "100", "maximize_ev", "", evenPair(`2`)...), limits)
	require.NoError(t, err)
	assert.Equal(t, allocation.StakeFilter{Min: 10}, in.filter)

	in, err = validate(newRequest(t, "100", "maximize_ev", `{"minStake":"4","maxStake":60}`, evenPair(`2`)...), limits)
	require.NoError(t, err)
	assert.Equal(t, allocation.StakeFilter{Min: 4, Max: 60}, in.filter)
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		input string
		want  Number
	}{
		{`12`, Number{Value: 12, Valid: true}},
		{`"0.5"`, Number{Value: 0.5, Valid: true}},
		{`" 30 "`, Number{Value: 30, Valid: true}},
		{`null`, Number{}},
		{`"abc"`, Number{}},
		{`true`, Number{}},
		{`{"a":1}`, Number{}},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tc.input), &n))
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestFingerprint(t *testing.T) {
	base := newRequest(t, "100", "loss_limit", `{"maxLossPercent":0.3}`, evenPair(`"2.0"`)...)
	same := newRequest(t, "100", "loss_limit", `{ "maxLossPercent" : 30 }`, evenPair(`2`)...)
	other := newRequest(t, "100", "loss_limit", `{"maxLossPercent":0.4}`, evenPair(`2`)...)

	a, err := validate(base, testLimits)
	require.NoError(t, err)
	b, err := validate(same, testLimits)
	require.NoError(t, err)
	c, err := validate(other, testLimits)
	require.NoError(t, err)

	// 30 is read as a percent and adds a note, so only the typed values match
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	b.notes = nil
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
