package allocation

import (
	"context"
	"fmt"
	"math"
)

// EVUnderLossCap maximises expected value subject to the total probability of the
// losing outcomes (payout < budget) staying at or below lossCap.
//
// The DP carries a loss bitmask next to the spent budget; bit i is set when candidate i's
// payout is below the budget. At the end the best mask under the cap wins, ties going to
// the mask with the lower loss probability.
func EVUnderLossCap(ctx context.Context, pr *Problem, lossCap float64) (Solution, error) {
	n, budget := pr.N(), pr.Budget
	if n > MaxMaskCandidates {
		return Solution{}, fmt.Errorf("loss cap solver supports at most %d candidates, got %d", MaxMaskCandidates, n)
	}
	negInf := math.Inf(-1)
	maskCount := 1 << n
	totalStates := (budget + 1) * maskCount
	target := int64(budget)

	prev := filled(totalStates, negInf)
	prev[0] = 0

	choices := make([][]int32, n)
	for i := 0; i < n; i++ {
		next := filled(totalStates, negInf)
		choice := newChoices(totalStates)
		bit := 1 << i
		payouts, p := pr.Payouts[i], pr.Probabilities[i]

		for prevBudget := 0; prevBudget <= budget; prevBudget++ {
			if err := ctx.Err(); err != nil {
				return Solution{}, err
			}
			prevOffset := prevBudget * maskCount
			for prevMask := 0; prevMask < maskCount; prevMask++ {
				prevVal := prev[prevOffset+prevMask]
				if prevVal == negInf {
					continue
				}
				for s := 0; s <= budget-prevBudget; s++ {
					if !pr.Filter.Allows(s) {
						continue
					}
					payout := payouts[s]
					newMask := prevMask
					if payout < target {
						newMask |= bit
					}
					idx := (prevBudget+s)*maskCount + newMask
					candEV := prevVal + p*float64(payout)
					if candEV > next[idx]+EPS {
						next[idx] = candEV
						choice[idx] = int32(s)
					}
				}
			}
		}

		choices[i] = choice
		prev = next
	}

	maskLoss := MaskProbabilities(pr.Probabilities)
	finalOffset := budget * maskCount
	bestMask, bestEV, bestLoss := -1, negInf, math.Inf(1)
	for mask := 0; mask < maskCount; mask++ {
		if maskLoss[mask] > lossCap+EPS {
			continue
		}
		ev := prev[finalOffset+mask]
		if ev == negInf {
			continue
		}
		if ev > bestEV+EPS || (math.Abs(ev-bestEV) <= EPS && maskLoss[mask] < bestLoss-EPS) {
			bestMask, bestEV, bestLoss = mask, ev, maskLoss[mask]
		}
	}
	if bestMask < 0 {
		return infeasible(), nil
	}

	alloc, ok := backtrackMask(choices, budget, maskCount, bestMask)
	if !ok {
		return infeasible(), nil
	}
	return feasible(alloc), nil
}
