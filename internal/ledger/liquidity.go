// Package ledger holds the per-tick and per-position liquidity records of a
// pool along with the fee-growth arithmetic that ties them together.
package ledger

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"adaptivePool/internal/pricemath"
)

var (
	ErrLiquidityUnderflow  = errors.New("liquidity underflow")
	ErrLiquidityOverflow   = errors.New("liquidity overflow")
	ErrNoPositionLiquidity = errors.New("position has no liquidity")
)

// MaxUint128 bounds every liquidity value and owed-token balance.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

var mod128 = new(big.Int).Lsh(big.NewInt(1), 128)

// AddDelta returns x + delta, failing if the result leaves the uint128 range.
func AddDelta(x, delta *big.Int) (*big.Int, error) {
	z := new(big.Int).Add(x, delta)
	if z.Sign() < 0 {
		return nil, ErrLiquidityUnderflow
	}
	if z.Cmp(MaxUint128) > 0 {
		return nil, ErrLiquidityOverflow
	}
	return z, nil
}

// MaxLiquidityPerTick spreads the uint128 liquidity range evenly over every
// usable tick so the sum of gross liquidity cannot overflow.
func MaxLiquidityPerTick(spacing int32) *big.Int {
	minTick := (pricemath.MinTick / spacing) * spacing
	maxTick := (pricemath.MaxTick / spacing) * spacing
	numTicks := int64((maxTick-minTick)/spacing) + 1
	return new(big.Int).Quo(MaxUint128, big.NewInt(numTicks))
}

// GrowthDelta converts a per-liquidity growth difference into a token amount:
// (growth * liquidity) / 2^128, truncated to uint128.
func GrowthDelta(growth *uint256.Int, liquidity *big.Int) *big.Int {
	amount := new(big.Int).Mul(growth.ToBig(), liquidity)
	amount.Rsh(amount, 128)
	return amount.Mod(amount, mod128)
}

// GrowthPerLiquidity returns amount * 2^128 / liquidity as a 256-bit value.
// The caller guarantees liquidity > 0.
func GrowthPerLiquidity(amount, liquidity *big.Int) *uint256.Int {
	g := new(big.Int).Lsh(amount, 128)
	g.Quo(g, liquidity)
	out, _ := uint256.FromBig(g)
	return out
}
