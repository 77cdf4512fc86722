package allocation

// MaxProbFocus puts the whole budget on the most likely candidate.
// Equal probabilities are decided by the larger multiplier, compared exactly; a full tie
// keeps the earlier candidate. Infeasible when the stake filter forbids an all-in stake.
func MaxProbFocus(pr *Problem) Solution {
	best := -1
	for i, p := range pr.Probabilities {
		if best < 0 || p > pr.Probabilities[best] {
			best = i
			continue
		}
		if p == pr.Probabilities[best] && pr.Multipliers[i].Cmp(pr.Multipliers[best]) > 0 {
			best = i
		}
	}
	if best < 0 || !pr.Filter.Allows(pr.Budget) {
		return infeasible()
	}

	alloc := make([]int, pr.N())
	alloc[best] = pr.Budget
	return feasible(alloc)
}
