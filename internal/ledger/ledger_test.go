package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var maxLiquidity = MaxLiquidityPerTick(60)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestUpdateTickSeedsOutsideGrowth(t *testing.T) {
	ticks := NewTicks()

	flipped, err := ticks.Update(-60, 0, big.NewInt(100), u(15), u(25), false, maxLiquidity)
	require.NoError(t, err)
	require.True(t, flipped)
	lower := ticks.Get(-60)
	require.Equal(t, uint64(15), lower.FeeGrowthOutside0X128.Uint64())
	require.Equal(t, uint64(25), lower.FeeGrowthOutside1X128.Uint64())

	flipped, err = ticks.Update(60, 0, big.NewInt(100), u(15), u(25), true, maxLiquidity)
	require.NoError(t, err)
	require.True(t, flipped)
	upper := ticks.Get(60)
	require.True(t, upper.FeeGrowthOutside0X128.IsZero())
	require.True(t, upper.FeeGrowthOutside1X128.IsZero())
}

func TestUpdateTickFlipAndNetLiquidity(t *testing.T) {
	ticks := NewTicks()
	zero := u(0)

	_, err := ticks.Update(-60, 0, big.NewInt(3), zero, zero, false, maxLiquidity)
	require.NoError(t, err)
	_, err = ticks.Update(60, 0, big.NewInt(3), zero, zero, true, maxLiquidity)
	require.NoError(t, err)

	flipped, err := ticks.Update(-60, 0, big.NewInt(2), zero, zero, false, maxLiquidity)
	require.NoError(t, err)
	require.False(t, flipped)

	sum := new(big.Int).Add(ticks.Get(-60).LiquidityNet, ticks.Get(60).LiquidityNet)
	require.Equal(t, int64(2), sum.Int64())

	_, err = ticks.Update(60, 0, big.NewInt(2), zero, zero, true, maxLiquidity)
	require.NoError(t, err)
	sum = new(big.Int).Add(ticks.Get(-60).LiquidityNet, ticks.Get(60).LiquidityNet)
	require.Equal(t, int64(0), sum.Int64())

	flipped, err = ticks.Update(-60, 0, big.NewInt(-5), zero, zero, false, maxLiquidity)
	require.NoError(t, err)
	require.True(t, flipped)
	require.Equal(t, 0, ticks.Get(-60).LiquidityGross.Sign())

	_, err = ticks.Update(-60, 0, big.NewInt(-1), zero, zero, false, maxLiquidity)
	require.True(t, errors.Is(err, ErrLiquidityUnderflow))
}

func TestUpdateTickMaxLiquidity(t *testing.T) {
	ticks := NewTicks()
	zero := u(0)
	over := new(big.Int).Add(maxLiquidity, big.NewInt(1))
	_, err := ticks.Update(0, 0, over, zero, zero, false, maxLiquidity)
	require.True(t, errors.Is(err, ErrLiquidityOverflow))
}

func TestCrossTick(t *testing.T) {
	ticks := NewTicks()
	_, err := ticks.Update(60, 100, big.NewInt(10), u(100), u(40), true, maxLiquidity)
	require.NoError(t, err)

	net := ticks.Cross(60, u(130), u(50))
	require.Equal(t, int64(-10), net.Int64())
	info := ticks.Get(60)
	require.Equal(t, uint64(30), info.FeeGrowthOutside0X128.Uint64())
	require.Equal(t, uint64(10), info.FeeGrowthOutside1X128.Uint64())
}

func TestFeeGrowthInside(t *testing.T) {
	ticks := NewTicks()
	ticks.Put(-60, &Tick{LiquidityGross: big.NewInt(1), LiquidityNet: big.NewInt(1), FeeGrowthOutside0X128: *u(2), FeeGrowthOutside1X128: *u(3), Initialized: true})
	ticks.Put(60, &Tick{LiquidityGross: big.NewInt(1), LiquidityNet: big.NewInt(-1), FeeGrowthOutside0X128: *u(4), FeeGrowthOutside1X128: *u(1), Initialized: true})

	in0, in1 := ticks.FeeGrowthInside(-60, 60, 0, u(15), u(15))
	require.Equal(t, uint64(9), in0.Uint64())
	require.Equal(t, uint64(11), in1.Uint64())

	// price above the range
	in0, _ = ticks.FeeGrowthInside(-60, 60, 120, u(15), u(15))
	require.Equal(t, uint64(2), in0.Uint64())

	// price below the range: lower outside minus upper outside, modulo 2^256
	in0, _ = ticks.FeeGrowthInside(-60, 60, -120, u(15), u(15))
	want := new(uint256.Int).Sub(u(2), u(4))
	require.True(t, in0.Eq(want))
}

func TestFeeGrowthInsideWraps(t *testing.T) {
	ticks := NewTicks()
	top := new(uint256.Int).SetAllOne()
	ticks.Put(-60, &Tick{LiquidityGross: big.NewInt(1), LiquidityNet: big.NewInt(1), FeeGrowthOutside0X128: *top, Initialized: true})
	ticks.Put(60, &Tick{LiquidityGross: big.NewInt(1), LiquidityNet: big.NewInt(-1), Initialized: true})

	// global has wrapped past zero since the lower tick snapshot
	in0, _ := ticks.FeeGrowthInside(-60, 60, 0, u(9), u(0))
	require.Equal(t, uint64(10), in0.Uint64())
}

func TestPositionUpdateAccruesFees(t *testing.T) {
	positions := NewPositions()
	key := PositionKey{Owner: common.HexToAddress("0x1"), TickLower: -60, TickUpper: 60}
	q128 := new(uint256.Int).Lsh(u(1), 128)

	_, err := positions.Update(key, big.NewInt(1000), u(0), u(0))
	require.NoError(t, err)

	// 5 tokens of growth per unit of liquidity on token0, 1 on token1
	g0 := new(uint256.Int).Mul(q128, u(5))
	pos, err := positions.Update(key, big.NewInt(0), g0, q128)
	require.NoError(t, err)
	require.Equal(t, int64(5000), pos.TokensOwed0.Int64())
	require.Equal(t, int64(1000), pos.TokensOwed1.Int64())

	// no further growth, nothing more owed
	pos, err = positions.Update(key, big.NewInt(0), g0, q128)
	require.NoError(t, err)
	require.Equal(t, int64(5000), pos.TokensOwed0.Int64())
}

func TestPositionUpdateAcrossWrap(t *testing.T) {
	positions := NewPositions()
	key := PositionKey{Owner: common.HexToAddress("0x2"), TickLower: 0, TickUpper: 60}
	q128 := new(uint256.Int).Lsh(u(1), 128)
	nearMax := new(uint256.Int).Sub(new(uint256.Int).SetAllOne(), new(uint256.Int).Sub(q128, u(1)))

	_, err := positions.Update(key, big.NewInt(10), nearMax, u(0))
	require.NoError(t, err)

	// growth advanced by 2*Q128 and wrapped through zero
	wrapped := new(uint256.Int).Add(nearMax, new(uint256.Int).Mul(q128, u(2)))
	pos, err := positions.Update(key, big.NewInt(0), wrapped, u(0))
	require.NoError(t, err)
	require.Equal(t, int64(20), pos.TokensOwed0.Int64())
}

func TestPositionPokeEmpty(t *testing.T) {
	positions := NewPositions()
	key := PositionKey{Owner: common.HexToAddress("0x3"), TickLower: 0, TickUpper: 60}
	_, err := positions.Update(key, big.NewInt(0), u(0), u(0))
	require.True(t, errors.Is(err, ErrNoPositionLiquidity))
	require.Nil(t, positions.Get(key))
}

func TestPositionKeyID(t *testing.T) {
	a := PositionKey{Owner: common.HexToAddress("0x4"), TickLower: -60, TickUpper: 60}
	b := a
	b.TickUpper = 120
	require.Equal(t, a.ID(), a.ID())
	require.NotEqual(t, a.ID(), b.ID())
}

func TestMaxLiquidityPerTick(t *testing.T) {
	// 2^128-1 divided across the 29575 usable ticks at spacing 60
	want, _ := new(big.Int).SetString("11505743598341114571880798222544994", 10)
	require.Equal(t, 0, MaxLiquidityPerTick(60).Cmp(want))
}
