package optimizer

import (
	"context"
	"testing"

	"github.com/aristath/stakealloc/internal/modules/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPresets struct {
	ids      []string
	defaults map[string]map[string]float64
}

func (s stubPresets) IDs() []string { return s.ids }

func (s stubPresets) Defaults(id string) (map[string]float64, bool) {
	d, ok := s.defaults[id]
	return d, ok
}

func TestCascade_SwitchesToModeReachingBudget(t *testing.T) {
	svc := newTestService(nil, stubPresets{ids: []string{"maximize_ev"}})
	req := newRequest(t, "10", "all_weather_maximin", "", cand{"A", 0.9, `"1.2"`}, cand{"B", 0.1, `5`})

	resp, err := svc.Cascade(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "maximize_ev", resp.Mode)
	assert.Equal(t, []int{10, 0}, stakes(resp))
	assert.Equal(t, []string{
		"Switched from all_weather_maximin to maximize_ev: its expected value 9.1 is below the budget 10.",
		"Expected value of maximize_ev: 10.8.",
	}, resp.Notes)
}

func TestCascade_KeepsRequestedModeReachingBudget(t *testing.T) {
	registry, err := strategies.Load("")
	require.NoError(t, err)
	svc := newTestService(nil, registry)

	resp, err := svc.Cascade(context.Background(), newRequest(t, "100", "all_weather_maximin", "", evenPair(`2`)...))
	require.NoError(t, err)
	assert.Equal(t, "all_weather_maximin", resp.Mode)
	assert.Empty(t, resp.Notes)
}

func TestCascade_RequestedModeFailed(t *testing.T) {
	svc := newTestService(nil, stubPresets{ids: []string{"maximize_ev"}})
	req := newRequest(t, "10", "sparse_k_focus", "", cand{"A", 0.9, `"1.2"`}, cand{"B", 0.1, `5`})

	resp, err := svc.Cascade(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "maximize_ev", resp.Mode)
	require.NotEmpty(t, resp.Notes)
	assert.Equal(t, "Switched from sparse_k_focus to maximize_ev: the requested mode failed.", resp.Notes[0])
}

func TestCascade_NoModeReachesBudget(t *testing.T) {
	registry, err := strategies.Load("")
	require.NoError(t, err)
	svc := newTestService(nil, registry)

	resp, err := svc.Cascade(context.Background(), newRequest(t, "10", "all_weather_maximin", "", evenPair(`1.5`)...))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "all_weather_maximin", resp.Mode)
	assert.Equal(t, []string{"No mode reaches an expected value at or above the budget; showing the requested mode."}, resp.Notes)
}

func TestCascade_BestEVWhenRequestedInfeasible(t *testing.T) {
	svc := newTestService(nil, stubPresets{ids: []string{"all_weather_maximin"}})

	resp, err := svc.Cascade(context.Background(),
		newRequest(t, "10", "loss_limit", `{"maxLossPercent":0}`, evenPair(`1.5`)...))
	require.NoError(t, err)
	assert.Equal(t, "all_weather_maximin", resp.Mode)
	assert.Equal(t, []int{5, 5}, stakes(resp))
	assert.Equal(t, []string{
		"Requested mode loss_limit could not be solved; showing all_weather_maximin (expected value 7.0).",
		"No mode reaches an expected value at or above the budget.",
	}, resp.Notes)
}

func TestCascade_AllInfeasible(t *testing.T) {
	svc := newTestService(nil, stubPresets{
		ids:      []string{"ev_under_lossprob_cap"},
		defaults: map[string]map[string]float64{"ev_under_lossprob_cap": {"lossProbCap": 0}},
	})

	resp, err := svc.Cascade(context.Background(),
		newRequest(t, "10", "loss_limit", `{"maxLossPercent":0}`, evenPair(`1.5`)...))
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, resp.Status)
	assert.Equal(t, "ev_under_lossprob_cap", resp.Mode)
}

func TestCascade_InvalidRequest(t *testing.T) {
	registry, err := strategies.Load("")
	require.NoError(t, err)
	svc := newTestService(nil, registry)

	_, err = svc.Cascade(context.Background(), newRequest(t, "0", "all_weather_maximin", "", evenPair(`2`)...))
	requireValidationError(t, err, "budget")
}

func TestPresetParams(t *testing.T) {
	params, err := presetParams([]byte(`{"normalizeProb":true,"minStake":"5","kSparse":3}`), map[string]float64{"maxLossPercent": 0.3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"normalizeProb":true,"minStake":"5","maxLossPercent":0.3}`, string(params))

	params, err = presetParams(nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(params))
}
