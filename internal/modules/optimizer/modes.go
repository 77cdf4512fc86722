package optimizer

import "github.com/samber/lo"

// Mode identifies an optimisation objective.
type Mode string

const (
	ModeAllWeatherMaximin    Mode = "all_weather_maximin"
	ModeHedgeBreakevenThenEV Mode = "hedge_breakeven_then_ev"
	ModeEVUnderMaxLoss       Mode = "beast_ev_under_maxloss"
	ModeLossLimit            Mode = "loss_limit"
	ModeEVUnderLossProbCap   Mode = "ev_under_lossprob_cap"
	ModeMaximizeProbTarget   Mode = "maximize_prob_ge_target"
	ModeSparseKFocus         Mode = "sparse_k_focus"
	ModeShortfallPenalty     Mode = "ev_with_shortfall_penalty"
	ModeMaximizeEV           Mode = "maximize_ev"
	ModeBalancedProfit       Mode = "balanced_profit"
	ModeMaxProbFocus         Mode = "max_prob_focus"
	ModeFrontierGenerate     Mode = "frontier_generate"
)

// Modes lists every mode the service can solve, in documentation order.
var Modes = []Mode{
	ModeAllWeatherMaximin,
	ModeHedgeBreakevenThenEV,
	ModeEVUnderMaxLoss,
	ModeLossLimit,
	ModeEVUnderLossProbCap,
	ModeMaximizeProbTarget,
	ModeSparseKFocus,
	ModeShortfallPenalty,
	ModeMaximizeEV,
	ModeBalancedProfit,
	ModeMaxProbFocus,
}

// Known reports whether m is served by a solver.
func (m Mode) Known() bool {
	return lo.Contains(Modes, m)
}

// Bitmask reports whether the mode's solver keeps a 2^n subset dimension.
func (m Mode) Bitmask() bool {
	return m == ModeEVUnderLossProbCap || m == ModeMaximizeProbTarget
}

// ModeParams is the typed parameter set of one mode.
type ModeParams interface {
	Mode() Mode
}

// NoParams is used by modes without parameters.
type NoParams struct {
	For Mode
}

func (p NoParams) Mode() Mode { return p.For }

// MaxLossParams bounds the loss in every outcome to MaxLoss*budget.
type MaxLossParams struct {
	For     Mode
	MaxLoss float64
}

func (p MaxLossParams) Mode() Mode { return p.For }

// MinPayout is the payout floor floor(budget*(1-MaxLoss)).
func (p MaxLossParams) MinPayout(budget int) int64 {
	return int64(float64(budget) * (1 - p.MaxLoss))
}

type LossProbCapParams struct {
	Cap float64
}

func (LossProbCapParams) Mode() Mode { return ModeEVUnderLossProbCap }

type ProbTargetParams struct {
	Target int64
}

func (ProbTargetParams) Mode() Mode { return ModeMaximizeProbTarget }

type SparseParams struct {
	K int
}

func (SparseParams) Mode() Mode { return ModeSparseKFocus }

// ShortfallParams charges Penalty per unit of payout below the budget.
type ShortfallParams struct {
	Penalty float64
}

func (ShortfallParams) Mode() Mode { return ModeShortfallPenalty }
