package allocation

import (
	"fmt"
	"math/bits"
)

// MaxMaskCandidates is the hard ceiling for the bitmask solvers (2^20 masks per budget slot).
const MaxMaskCandidates = 20

// MaskProbabilities returns totals[mask] = sum of p[i] for every set bit i of mask.
func MaskProbabilities(p []float64) []float64 {
	if len(p) > MaxMaskCandidates {
		panic(fmt.Sprintf("allocation: %d candidates exceed the bitmask limit of %d", len(p), MaxMaskCandidates))
	}
	count := 1 << len(p)
	totals := make([]float64, count)
	for mask := 1; mask < count; mask++ {
		idx := bits.TrailingZeros(uint(mask))
		totals[mask] = totals[mask&(mask-1)] + p[idx]
	}
	return totals
}
