package pricemath

import "math/big"

// FeeDenominator is 100% expressed in fee pips.
const FeeDenominator = 1_000_000

var feeDenominator = big.NewInt(FeeDenominator)

// SwapStep is the outcome of moving the price within a single liquidity range.
type SwapStep struct {
	SqrtPriceNextX96 *big.Int
	AmountIn         *big.Int
	AmountOut        *big.Int
	FeeAmount        *big.Int
}

// ComputeSwapStep moves the price from current toward target at constant liquidity.
// amountRemaining is positive for exact input and negative for exact output.
// The fee is charged on the input amount before it moves the price.
func ComputeSwapStep(sqrtCurrentX96, sqrtTargetX96, liquidity, amountRemaining *big.Int, feePips uint32) (SwapStep, error) {
	zeroForOne := sqrtCurrentX96.Cmp(sqrtTargetX96) >= 0
	exactIn := amountRemaining.Sign() >= 0
	fee := big.NewInt(int64(feePips))
	feeComplement := new(big.Int).Sub(feeDenominator, fee)

	var (
		next      *big.Int
		amountIn  = new(big.Int)
		amountOut = new(big.Int)
		err       error
	)

	if exactIn {
		remainingLessFee := mulDiv(amountRemaining, feeComplement, feeDenominator)
		if zeroForOne {
			amountIn, err = Amount0Delta(sqrtTargetX96, sqrtCurrentX96, liquidity, true)
			if err != nil {
				return SwapStep{}, err
			}
		} else {
			amountIn = Amount1Delta(sqrtCurrentX96, sqrtTargetX96, liquidity, true)
		}
		if remainingLessFee.Cmp(amountIn) >= 0 {
			next = new(big.Int).Set(sqrtTargetX96)
		} else {
			next, err = NextSqrtPriceFromInput(sqrtCurrentX96, liquidity, remainingLessFee, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	} else {
		remainingOut := new(big.Int).Neg(amountRemaining)
		if zeroForOne {
			amountOut = Amount1Delta(sqrtTargetX96, sqrtCurrentX96, liquidity, false)
		} else {
			amountOut, err = Amount0Delta(sqrtCurrentX96, sqrtTargetX96, liquidity, false)
			if err != nil {
				return SwapStep{}, err
			}
		}
		if remainingOut.Cmp(amountOut) >= 0 {
			next = new(big.Int).Set(sqrtTargetX96)
		} else {
			next, err = NextSqrtPriceFromOutput(sqrtCurrentX96, liquidity, remainingOut, zeroForOne)
			if err != nil {
				return SwapStep{}, err
			}
		}
	}

	reachedTarget := next.Cmp(sqrtTargetX96) == 0

	if zeroForOne {
		if !(reachedTarget && exactIn) {
			amountIn, err = Amount0Delta(next, sqrtCurrentX96, liquidity, true)
			if err != nil {
				return SwapStep{}, err
			}
		}
		if !(reachedTarget && !exactIn) {
			amountOut = Amount1Delta(next, sqrtCurrentX96, liquidity, false)
		}
	} else {
		if !(reachedTarget && exactIn) {
			amountIn = Amount1Delta(sqrtCurrentX96, next, liquidity, true)
		}
		if !(reachedTarget && !exactIn) {
			amountOut, err = Amount0Delta(sqrtCurrentX96, next, liquidity, false)
			if err != nil {
				return SwapStep{}, err
			}
		}
	}

	if !exactIn {
		remainingOut := new(big.Int).Neg(amountRemaining)
		if amountOut.Cmp(remainingOut) > 0 {
			amountOut = remainingOut
		}
	}

	var feeAmount *big.Int
	if exactIn && !reachedTarget {
		// the price stopped short of target, so whatever input is left over is fee
		feeAmount = new(big.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount = mulDivRoundingUp(amountIn, fee, feeComplement)
	}

	return SwapStep{
		SqrtPriceNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        feeAmount,
	}, nil
}
