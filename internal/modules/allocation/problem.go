package allocation

import (
	"errors"
	"fmt"
)

// EPS is the tolerance for comparing objective values built from float probabilities.
// A candidate replaces the incumbent only when it is better by more than EPS.
const EPS = 1e-9

// noChoice marks an unreachable DP state.
const noChoice = -1

// Candidate is one mutually exclusive outcome.
type Candidate struct {
	Name       string
	P          float64
	Multiplier Ratio
}

// StakeFilter restricts which non-zero stakes a solver may place on a single candidate.
// A zero stake is always allowed. Min <= 1 and Max == 0 disable the respective bound.
type StakeFilter struct {
	Min int
	Max int
}

// Allows reports whether stake s may be placed on one candidate.
func (f StakeFilter) Allows(s int) bool {
	if s == 0 {
		return true
	}
	if s < f.Min {
		return false
	}
	return f.Max <= 0 || s <= f.Max
}

// Problem is the solve-scoped input shared by every solver.
type Problem struct {
	Budget        int
	Probabilities []float64
	Payouts       []PayoutTable
	Multipliers   []Ratio
	Filter        StakeFilter
}

// NewProblem builds payout tables for every candidate.
func NewProblem(budget int, candidates []Candidate, filter StakeFilter) (*Problem, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}
	if len(candidates) == 0 {
		return nil, errors.New("at least one candidate is required")
	}

	pr := &Problem{
		Budget:        budget,
		Probabilities: make([]float64, len(candidates)),
		Payouts:       make([]PayoutTable, len(candidates)),
		Multipliers:   make([]Ratio, len(candidates)),
		Filter:        filter,
	}
	for i, c := range candidates {
		if c.Multiplier.IsZero() {
			return nil, fmt.Errorf("candidate %q has no multiplier", c.Name)
		}
		if c.P < 0 {
			return nil, fmt.Errorf("candidate %q has negative probability", c.Name)
		}
		pr.Probabilities[i] = c.P
		pr.Multipliers[i] = c.Multiplier
		pr.Payouts[i] = BuildPayoutTable(c.Multiplier, budget)
	}
	return pr, nil
}

// N returns the number of candidates.
func (pr *Problem) N() int {
	return len(pr.Payouts)
}

// Solution is the discriminated result of a solver.
// Feasible is false when no allocation satisfies the solver's hard constraints.
type Solution struct {
	Allocation []int
	Feasible   bool
}

func infeasible() Solution {
	return Solution{}
}

func feasible(alloc []int) Solution {
	return Solution{Allocation: alloc, Feasible: true}
}

// newChoices allocates a back-pointer layer with every state unreachable.
func newChoices(size int) []int32 {
	c := make([]int32, size)
	for i := range c {
		c[i] = noChoice
	}
	return c
}

func filled(size int, v float64) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = v
	}
	return out
}

// backtrackBudget reconstructs an allocation from budget-only back-pointers.
func backtrackBudget(choices [][]int32, budget int) ([]int, bool) {
	alloc := make([]int, len(choices))
	remaining := budget
	for i := len(choices) - 1; i >= 0; i-- {
		s := int(choices[i][remaining])
		if s < 0 {
			return nil, false
		}
		alloc[i] = s
		remaining -= s
	}
	return alloc, remaining == 0
}

// backtrackMask reconstructs an allocation from budget x mask back-pointers.
// Bit i of the mask can only be set while processing candidate i, so it is cleared on the way back.
func backtrackMask(choices [][]int32, budget, maskCount, finalMask int) ([]int, bool) {
	alloc := make([]int, len(choices))
	remaining := budget
	mask := finalMask
	for i := len(choices) - 1; i >= 0; i-- {
		s := int(choices[i][remaining*maskCount+mask])
		if s < 0 {
			return nil, false
		}
		alloc[i] = s
		remaining -= s
		mask &^= 1 << i
	}
	return alloc, remaining == 0
}
