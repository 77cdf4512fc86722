package allocation

import (
	"context"
	"math"
)

// EVWithMinPayout maximises expected value. When minPayout is non-nil, any stake whose
// payout falls below it is never considered, so every outcome pays at least minPayout.
func EVWithMinPayout(ctx context.Context, pr *Problem, minPayout *int64) (Solution, error) {
	return bestExpected(ctx, pr, minPayout, nil)
}

// bestExpected is the budget-only EV recurrence shared by EVWithMinPayout and ExpectedUtility.
// With a utility the objective is sum p*u(payout) and raw EV breaks ties.
func bestExpected(ctx context.Context, pr *Problem, minPayout *int64, u UtilityFunc) (Solution, error) {
	n, budget := pr.N(), pr.Budget
	negInf := math.Inf(-1)

	prevObj := filled(budget+1, negInf)
	prevEV := filled(budget+1, negInf)
	prevObj[0] = 0
	prevEV[0] = 0

	choices := make([][]int32, n)
	for i := 0; i < n; i++ {
		nextObj := filled(budget+1, negInf)
		nextEV := filled(budget+1, negInf)
		choice := newChoices(budget + 1)
		payouts, p := pr.Payouts[i], pr.Probabilities[i]

		for b := 0; b <= budget; b++ {
			if err := ctx.Err(); err != nil {
				return Solution{}, err
			}
			bestObj, bestEV, bestS := negInf, negInf, noChoice
			for s := 0; s <= b; s++ {
				if !pr.Filter.Allows(s) {
					continue
				}
				prevBudget := b - s
				if prevObj[prevBudget] == negInf {
					continue
				}
				payout := payouts[s]
				if minPayout != nil && payout < *minPayout {
					continue
				}
				candEV := prevEV[prevBudget] + p*float64(payout)
				candObj := candEV
				if u != nil {
					candObj = prevObj[prevBudget] + p*u(payout)
				}
				if candObj > bestObj+EPS || (u != nil && math.Abs(candObj-bestObj) <= EPS && candEV > bestEV+EPS) {
					bestObj, bestEV, bestS = candObj, candEV, s
				}
			}
			if bestS >= 0 {
				nextObj[b] = bestObj
				nextEV[b] = bestEV
				choice[b] = int32(bestS)
			}
		}

		choices[i] = choice
		prevObj, prevEV = nextObj, nextEV
	}

	if prevObj[budget] == negInf {
		return infeasible(), nil
	}
	alloc, ok := backtrackBudget(choices, budget)
	if !ok {
		return infeasible(), nil
	}
	return feasible(alloc), nil
}
