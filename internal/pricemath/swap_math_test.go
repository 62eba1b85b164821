package pricemath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestComputeSwapStepExactInCappedAtTarget(t *testing.T) {
	target, err := SqrtRatioAtTick(100)
	require.NoError(t, err)

	step, err := ComputeSwapStep(Q96, target, e18(2), e18(1), 600)
	require.NoError(t, err)

	require.Equal(t, 0, step.SqrtPriceNextX96.Cmp(target))
	spent := new(big.Int).Add(step.AmountIn, step.FeeAmount)
	require.True(t, spent.Cmp(e18(1)) < 0, "spent %s", spent)

	wantFee := mulDivRoundingUp(step.AmountIn, big.NewInt(600), big.NewInt(FeeDenominator-600))
	require.Equal(t, 0, step.FeeAmount.Cmp(wantFee))
	require.True(t, step.AmountOut.Sign() > 0)
}

func TestComputeSwapStepExactInFullySpent(t *testing.T) {
	target, err := SqrtRatioAtTick(-5000)
	require.NoError(t, err)
	amount := big.NewInt(1_000_000)

	step, err := ComputeSwapStep(Q96, target, e18(2), amount, 3000)
	require.NoError(t, err)

	require.True(t, step.SqrtPriceNextX96.Cmp(target) > 0)
	require.True(t, step.SqrtPriceNextX96.Cmp(Q96) < 0)
	spent := new(big.Int).Add(step.AmountIn, step.FeeAmount)
	require.Equal(t, 0, spent.Cmp(amount))
}

func TestComputeSwapStepExactOutCapped(t *testing.T) {
	target, err := SqrtRatioAtTick(5000)
	require.NoError(t, err)
	want := big.NewInt(-1_000_000)

	step, err := ComputeSwapStep(Q96, target, e18(2), want, 3000)
	require.NoError(t, err)

	require.Equal(t, 0, step.AmountOut.Cmp(big.NewInt(1_000_000)))
	require.True(t, step.SqrtPriceNextX96.Cmp(target) < 0)
	require.True(t, step.AmountIn.Sign() > 0)
}

func TestComputeSwapStepEntireInputTakenAsFee(t *testing.T) {
	liquidity, _ := new(big.Int).SetString("1985041575832132834610021537970", 10)

	step, err := ComputeSwapStep(big.NewInt(2413), big.NewInt(79887613182836312), liquidity, big.NewInt(10), 1872)
	require.NoError(t, err)

	require.Equal(t, int64(0), step.AmountIn.Int64())
	require.Equal(t, int64(10), step.FeeAmount.Int64())
	require.Equal(t, int64(0), step.AmountOut.Int64())
	require.Equal(t, int64(2413), step.SqrtPriceNextX96.Int64())
}

func TestSignedAmountDeltas(t *testing.T) {
	lower, err := SqrtRatioAtTick(-60)
	require.NoError(t, err)
	upper, err := SqrtRatioAtTick(60)
	require.NoError(t, err)

	added, err := SignedAmount0Delta(Q96, upper, e18(1))
	require.NoError(t, err)
	removed, err := SignedAmount0Delta(Q96, upper, new(big.Int).Neg(e18(1)))
	require.NoError(t, err)
	require.True(t, added.Sign() > 0)
	require.True(t, removed.Sign() < 0)
	// rounding favours the pool in both directions
	require.True(t, new(big.Int).Add(added, removed).Sign() >= 0)

	add1 := SignedAmount1Delta(lower, Q96, e18(1))
	rem1 := SignedAmount1Delta(lower, Q96, new(big.Int).Neg(e18(1)))
	require.True(t, new(big.Int).Add(add1, rem1).Sign() >= 0)
}
