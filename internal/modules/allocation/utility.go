package allocation

import (
	"context"
	"math"
)

// UtilityFunc maps an integer payout to a finite utility value.
type UtilityFunc func(payout int64) float64

// ExpectedUtility maximises sum p_i * u(payout_i). Ties within EPS go to the higher raw EV.
func ExpectedUtility(ctx context.Context, pr *Problem, u UtilityFunc) (Solution, error) {
	if u == nil {
		u = LinearUtility()
	}
	return bestExpected(ctx, pr, nil, u)
}

// LinearUtility is the identity: ExpectedUtility with it behaves like plain EV maximisation.
func LinearUtility() UtilityFunc {
	return func(payout int64) float64 { return float64(payout) }
}

// ShortfallUtility charges lambda per unit of payout below the budget:
// u(x) = x - lambda*max(0, budget-x).
func ShortfallUtility(budget int, lambda float64) UtilityFunc {
	b := int64(budget)
	return func(payout int64) float64 {
		x := float64(payout)
		if payout < b {
			return x - lambda*float64(b-payout)
		}
		return x
	}
}

// LogUtility is the Kelly-style growth objective u(x) = ln(1+x).
// It spreads stake over outcomes instead of piling onto the single best EV ratio.
func LogUtility() UtilityFunc {
	return func(payout int64) float64 { return math.Log1p(float64(payout)) }
}
