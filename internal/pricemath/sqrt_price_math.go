package pricemath

import (
	"errors"
	"math/big"
)

const resolution = 96

var (
	// Q96 is 1.0 in Q64.96.
	Q96 = new(big.Int).Lsh(big.NewInt(1), resolution)
	// Q128 is 1.0 in Q128.128.
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))

	ErrLiquidityZero   = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero   = errors.New("sqrt price must be greater than zero")
	ErrPriceOverflow   = errors.New("sqrt price overflow")
	ErrInsufficientOut = errors.New("output exceeds available reserves at price")
)

func mulDiv(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, c)
}

func mulDivRoundingUp(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(p, c, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func divRoundingUp(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB), the token0
// amount between two prices. Prices may be given in either order.
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}

	numerator1 := new(big.Int).Lsh(liquidity, resolution)
	numerator2 := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtB), sqrtA), nil
	}
	return new(big.Int).Quo(mulDiv(numerator1, numerator2, sqrtB), sqrtA), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA), the token1 amount between two prices.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}
	return mulDiv(liquidity, diff, Q96)
}

// SignedAmount0Delta returns the token0 owed for a signed liquidity change:
// positive (rounded up) when liquidity is added, negative (rounded down) when removed.
func SignedAmount0Delta(sqrtA, sqrtB, liquidityDelta *big.Int) (*big.Int, error) {
	if liquidityDelta.Sign() < 0 {
		amount, err := Amount0Delta(sqrtA, sqrtB, new(big.Int).Neg(liquidityDelta), false)
		if err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	return Amount0Delta(sqrtA, sqrtB, liquidityDelta, true)
}

// SignedAmount1Delta is the token1 counterpart of SignedAmount0Delta.
func SignedAmount1Delta(sqrtA, sqrtB, liquidityDelta *big.Int) *big.Int {
	if liquidityDelta.Sign() < 0 {
		amount := Amount1Delta(sqrtA, sqrtB, new(big.Int).Neg(liquidityDelta), false)
		return amount.Neg(amount)
	}
	return Amount1Delta(sqrtA, sqrtB, liquidityDelta, true)
}

// NextSqrtPriceFromInput returns the price after adding amountIn of the input token.
func NextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after removing amountOut of the output token.
func NextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

func nextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtPX96), nil
	}

	numerator1 := new(big.Int).Lsh(liquidity, resolution)
	product := new(big.Int).Mul(amount, sqrtPX96)
	if add {
		denominator := new(big.Int).Add(numerator1, product)
		next := mulDivRoundingUp(numerator1, sqrtPX96, denominator)
		if next.Cmp(maxUint160) > 0 {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}

	if numerator1.Cmp(product) <= 0 {
		return nil, ErrInsufficientOut
	}
	denominator := new(big.Int).Sub(numerator1, product)
	next := mulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if next.Cmp(maxUint160) > 0 {
		return nil, ErrPriceOverflow
	}
	return next, nil
}

func nextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if add {
		next := new(big.Int).Add(sqrtPX96, mulDiv(amount, Q96, liquidity))
		if next.Cmp(maxUint160) > 0 {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}

	quotient := mulDivRoundingUp(amount, Q96, liquidity)
	if sqrtPX96.Cmp(quotient) <= 0 {
		return nil, ErrInsufficientOut
	}
	return new(big.Int).Sub(sqrtPX96, quotient), nil
}
