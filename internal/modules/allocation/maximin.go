package allocation

import (
	"context"
	"math"
)

// AllWeatherMaximin maximises the worst-case payout across all outcomes.
// Among allocations with the same worst case (within EPS) the higher expected value wins.
func AllWeatherMaximin(ctx context.Context, pr *Problem) (Solution, error) {
	n, budget := pr.N(), pr.Budget
	negInf := math.Inf(-1)

	prevMin := filled(budget+1, negInf)
	prevEV := filled(budget+1, negInf)
	prevMin[0] = math.Inf(1)
	prevEV[0] = 0

	choices := make([][]int32, n)
	for i := 0; i < n; i++ {
		nextMin := filled(budget+1, negInf)
		nextEV := filled(budget+1, negInf)
		choice := newChoices(budget + 1)
		payouts, p := pr.Payouts[i], pr.Probabilities[i]

		for b := 0; b <= budget; b++ {
			if err := ctx.Err(); err != nil {
				return Solution{}, err
			}
			bestMin, bestEV, bestS := negInf, negInf, noChoice
			for s := 0; s <= b; s++ {
				if !pr.Filter.Allows(s) {
					continue
				}
				prevBudget := b - s
				if prevMin[prevBudget] == negInf {
					continue
				}
				payout := float64(payouts[s])
				candMin := math.Min(prevMin[prevBudget], payout)
				candEV := prevEV[prevBudget] + p*payout
				if candMin > bestMin+EPS || (math.Abs(candMin-bestMin) <= EPS && candEV > bestEV+EPS) {
					bestMin, bestEV, bestS = candMin, candEV, s
				}
			}
			if bestS >= 0 {
				nextMin[b] = bestMin
				nextEV[b] = bestEV
				choice[b] = int32(bestS)
			}
		}

		choices[i] = choice
		prevMin, prevEV = nextMin, nextEV
	}

	if prevMin[budget] == negInf {
		return infeasible(), nil
	}
	alloc, ok := backtrackBudget(choices, budget)
	if !ok {
		return infeasible(), nil
	}
	return feasible(alloc), nil
}
