package allocation

import (
	"context"
	"fmt"
	"math"
)

// MaximizeProbTarget maximises the probability that the realised payout reaches target.
//
// Per (budget, hit mask) state the DP keeps the best EV and, on EV ties, the best worst
// case. The final pick orders masks by hit probability, then EV, then worst case.
func MaximizeProbTarget(ctx context.Context, pr *Problem, target int64) (Solution, error) {
	n, budget := pr.N(), pr.Budget
	if n > MaxMaskCandidates {
		return Solution{}, fmt.Errorf("probability target solver supports at most %d candidates, got %d", MaxMaskCandidates, n)
	}
	negInf := math.Inf(-1)
	maskCount := 1 << n
	totalStates := (budget + 1) * maskCount

	prevEV := filled(totalStates, negInf)
	prevMin := filled(totalStates, negInf)
	prevEV[0] = 0
	prevMin[0] = math.Inf(1)

	choices := make([][]int32, n)
	for i := 0; i < n; i++ {
		nextEV := filled(totalStates, negInf)
		nextMin := filled(totalStates, negInf)
		choice := newChoices(totalStates)
		bit := 1 << i
		payouts, p := pr.Payouts[i], pr.Probabilities[i]

		for prevBudget := 0; prevBudget <= budget; prevBudget++ {
			if err := ctx.Err(); err != nil {
				return Solution{}, err
			}
			prevOffset := prevBudget * maskCount
			for prevMask := 0; prevMask < maskCount; prevMask++ {
				prevVal := prevEV[prevOffset+prevMask]
				if prevVal == negInf {
					continue
				}
				prevMinVal := prevMin[prevOffset+prevMask]
				for s := 0; s <= budget-prevBudget; s++ {
					if !pr.Filter.Allows(s) {
						continue
					}
					payout := payouts[s]
					newMask := prevMask
					if payout >= target {
						newMask |= bit
					}
					idx := (prevBudget+s)*maskCount + newMask
					candEV := prevVal + p*float64(payout)
					candMin := math.Min(prevMinVal, float64(payout))
					curEV := nextEV[idx]
					if candEV > curEV+EPS || (math.Abs(candEV-curEV) <= EPS && candMin > nextMin[idx]+EPS) {
						nextEV[idx] = candEV
						nextMin[idx] = candMin
						choice[idx] = int32(s)
					}
				}
			}
		}

		choices[i] = choice
		prevEV, prevMin = nextEV, nextMin
	}

	maskHits := MaskProbabilities(pr.Probabilities)
	finalOffset := budget * maskCount
	bestMask := -1
	bestProb, bestEV, bestMin := negInf, negInf, negInf
	for mask := 0; mask < maskCount; mask++ {
		idx := finalOffset + mask
		ev := prevEV[idx]
		if ev == negInf {
			continue
		}
		prob, worst := maskHits[mask], prevMin[idx]
		better := prob > bestProb+EPS
		if !better && math.Abs(prob-bestProb) <= EPS {
			better = ev > bestEV+EPS || (math.Abs(ev-bestEV) <= EPS && worst > bestMin+EPS)
		}
		if better {
			bestMask, bestProb, bestEV, bestMin = mask, prob, ev, worst
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
