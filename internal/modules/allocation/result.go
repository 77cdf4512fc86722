package allocation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarises an allocation.
type Metrics struct {
	WorstCase  int64    // G: minimum payout over all outcomes
	EV         float64  // sum p_i * payout_i
	EP         float64  // EV - budget
	LossProb   float64  // sum p_i where payout_i < budget
	TargetProb *float64 // sum p_i where payout_i >= target, only when a target was given
	PayoutVar  float64  // payout variance over the probability-weighted outcomes
}

// Result is the allocation with its per-outcome payouts and metrics.
type Result struct {
	Allocation []int
	Payouts    []int64
	Metrics    Metrics
}

// BuildResult recomputes payouts for alloc and derives the summary metrics.
// alloc must have one entry per candidate, each within the payout tables.
func BuildResult(pr *Problem, alloc []int, target *int64) Result {
	n := pr.N()
	payouts := make([]int64, n)
	values := make([]float64, n)

	worst := int64(math.MaxInt64)
	var ev, loss, hit float64
	budget := int64(pr.Budget)
	for i := 0; i < n; i++ {
		payout := pr.Payouts[i][alloc[i]]
		p := pr.Probabilities[i]
		payouts[i] = payout
		values[i] = float64(payout)

		if payout < worst {
			worst = payout
		}
		ev += p * float64(payout)
		if payout < budget {
			loss += p
		}
		if target != nil && payout >= *target {
			hit += p
		}
	}
	if n == 0 {
		worst = 0
	}

	m := Metrics{
		WorstCase: worst,
		EV:        ev,
		EP:        ev - float64(pr.Budget),
		LossProb:  loss,
	}
	if target != nil {
		m.TargetProb = &hit
	}
	if n > 0 && floats.Sum(pr.Probabilities) > 0 {
		_, m.PayoutVar = stat.PopMeanVariance(values, pr.Probabilities)
	}

	return Result{Allocation: append([]int(nil), alloc...), Payouts: payouts, Metrics: m}
}
