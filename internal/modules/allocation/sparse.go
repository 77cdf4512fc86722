package allocation

import (
	"context"
	"math"
)

// SparseKFocus maximises expected value while placing a non-zero stake on at most k
// candidates. k is clamped to [1, n].
func SparseKFocus(ctx context.Context, pr *Problem, k int) (Solution, error) {
	n, budget := pr.N(), pr.Budget
	kMax := k
	if kMax > n {
		kMax = n
	}
	if kMax < 1 {
		kMax = 1
	}
	negInf := math.Inf(-1)
	width := kMax + 1
	totalStates := (budget + 1) * width

	prev := filled(totalStates, negInf)
	prev[0] = 0

	choices := make([][]int32, n)
	for i := 0; i < n; i++ {
		next := filled(totalStates, negInf)
		choice := newChoices(totalStates)
		payouts, p := pr.Payouts[i], pr.Probabilities[i]

		for prevBudget := 0; prevBudget <= budget; prevBudget++ {
			if err := ctx.Err(); err != nil {
				return Solution{}, err
			}
			prevOffset := prevBudget * width
			for prevK := 0; prevK <= kMax; prevK++ {
				prevVal := prev[prevOffset+prevK]
				if prevVal == negInf {
					continue
				}
				for s := 0; s <= budget-prevBudget; s++ {
					if !pr.Filter.Allows(s) {
						continue
					}
					newK := prevK
					if s > 0 {
						newK++
					}
					if newK > kMax {
						continue
					}
					idx := (prevBudget+s)*width + newK
					candEV := prevVal + p*float64(payouts[s])
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

	bestK, bestEV := -1, negInf
	for kk := 0; kk <= kMax; kk++ {
		value := prev[budget*width+kk]
		if value > bestEV+EPS {
			bestK, bestEV = kk, value
		}
	}
	if bestK < 0 {
		return infeasible(), nil
	}

	alloc := make([]int, n)
	remaining, kk := budget, bestK
	for i := n - 1; i >= 0; i-- {
		s := int(choices[i][remaining*width+kk])
		if s < 0 {
			return infeasible(), nil
		}
		alloc[i] = s
		remaining -= s
		if s > 0 {
			kk--
		}
	}
	return feasible(alloc), nil
}
