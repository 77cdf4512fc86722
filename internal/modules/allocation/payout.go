package allocation

import (
	"math"
	"math/big"
)

// MaxExactPayout is the largest payout that survives conversion to float64 unchanged.
const MaxExactPayout = int64(1) << 53

// PayoutTable holds floor(s * multiplier) for every stake s in 0..budget.
type PayoutTable []int64

// BuildPayoutTable computes the payout for every stake with exact integer arithmetic.
//
// The int64 fast path is only taken when budget*num cannot overflow, so both paths
// return identical tables.
func BuildPayoutTable(r Ratio, budget int) PayoutTable {
	if budget < 0 {
		budget = 0
	}
	table := make(PayoutTable, budget+1)
	num, den := r.Num(), r.Den()

	if num.IsInt64() && den.IsInt64() {
		n, d := num.Int64(), den.Int64()
		if budget == 0 || n <= math.MaxInt64/int64(budget) {
			for s := 0; s <= budget; s++ {
				table[s] = int64(s) * n / d
			}
			return table
		}
	}

	stake := new(big.Int)
	product := new(big.Int)
	for s := 0; s <= budget; s++ {
		stake.SetInt64(int64(s))
		product.Mul(stake, num)
		product.Quo(product, den)
		if product.IsInt64() {
			table[s] = product.Int64()
		} else {
			table[s] = math.MaxInt64
		}
	}
	return table
}

// MaxPayout returns the payout of the full budget, or false when it exceeds MaxExactPayout.
func MaxPayout(r Ratio, budget int) (int64, bool) {
	product := new(big.Int).Mul(big.NewInt(int64(budget)), r.Num())
	product.Quo(product, r.Den())
	if !product.IsInt64() || product.Int64() > MaxExactPayout {
		return 0, false
	}
	return product.Int64(), true
}
