package optimizer

import (
	"fmt"
	"math"

	"github.com/aristath/stakealloc/internal/modules/allocation"
	"github.com/shirou/gopsutil/v3/mem"
)

// Guard rejects solves whose DP tables would not fit the configured limits.
type Guard struct {
	maxBitmask      int
	maxBytes        uint64
	availableMemory func() (uint64, error)
}

// NewGuard creates a guard. maxBitmask is clamped to allocation.MaxMaskCandidates;
// maxMemoryMB <= 0 disables the fixed memory cap.
func NewGuard(maxBitmask, maxMemoryMB int) *Guard {
	if maxBitmask <= 0 || maxBitmask > allocation.MaxMaskCandidates {
		maxBitmask = allocation.MaxMaskCandidates
	}
	g := &Guard{
		maxBitmask:      maxBitmask,
		availableMemory: hostAvailableMemory,
	}
	if maxMemoryMB > 0 {
		g.maxBytes = uint64(maxMemoryMB) * 1024 * 1024
	}
	return g
}

func hostAvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// Check returns ErrProblemTooLarge when the solve for in is out of bounds.
func (g *Guard) Check(in *solveInput) error {
	n := len(in.candidates)
	if in.mode.Bitmask() && n > g.maxBitmask {
		return fmt.Errorf("%w: mode %s supports at most %d candidates, got %d", ErrProblemTooLarge, in.mode, g.maxBitmask, n)
	}

	need := EstimateBytes(in.mode, in.params, n, in.budget)
	if g.maxBytes > 0 && need > g.maxBytes {
		return fmt.Errorf("%w: solve needs about %d MB, limit is %d MB", ErrProblemTooLarge, need>>20, g.maxBytes>>20)
	}
	if g.availableMemory != nil {
		if available, err := g.availableMemory(); err == nil && available > 0 && need > available/2 {
			return fmt.Errorf("%w: solve needs about %d MB, only %d MB available", ErrProblemTooLarge, need>>20, available>>20)
		}
	}
	return nil
}

// EstimateBytes approximates the memory held by the payout tables and DP layers of one solve.
// Back-pointers are int32 and kept for every candidate; value layers are float64 and only
// two generations are alive at a time.
func EstimateBytes(mode Mode, params ModeParams, n, budget int) uint64 {
	rows := uint64(budget) + 1
	payouts := uint64(n) * rows * 8

	var states, layers uint64
	switch {
	case mode == ModeMaxProbFocus:
		return payouts
	case mode.Bitmask():
		if n > allocation.MaxMaskCandidates {
			return math.MaxUint64
		}
		states = rows << uint(n)
		layers = 4
	case mode == ModeSparseKFocus:
		k := uint64(n)
		if sp, ok := params.(SparseParams); ok && sp.K > 0 && uint64(sp.K) < k {
			k = uint64(sp.K)
		}
		states = rows * (k + 1)
		layers = 2
	default:
		states = rows
		layers = 4
	}
	return payouts + uint64(n)*states*4 + layers*states*8
}
