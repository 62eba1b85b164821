package pricemath

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var q192 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)

// PriceFromSqrtX96 returns token1 per token0 as a decimal rounded to places.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, places int32) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return decimal.NewFromBigInt(squared, 0).DivRound(q192, places)
}

// FeePercent renders a fee in pips as a percentage, e.g. 3000 -> 0.3.
func FeePercent(feePips uint32) decimal.Decimal {
	return decimal.New(int64(feePips), -4)
}
