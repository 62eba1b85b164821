package ledger

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"adaptivePool/internal/staged"
)

// Tick is the liquidity record at a single tick boundary. Fee growth outside is
// relative to the current tick and wraps modulo 2^256.
type Tick struct {
	LiquidityGross        *big.Int
	LiquidityNet          *big.Int
	FeeGrowthOutside0X128 uint256.Int
	FeeGrowthOutside1X128 uint256.Int
	Initialized           bool
}

func newTick() *Tick {
	return &Tick{LiquidityGross: new(big.Int), LiquidityNet: new(big.Int)}
}

// Clone returns a deep copy.
func (t *Tick) Clone() *Tick {
	cp := *t
	cp.LiquidityGross = new(big.Int).Set(t.LiquidityGross)
	cp.LiquidityNet = new(big.Int).Set(t.LiquidityNet)
	return &cp
}

// Ticks is the tick table of one pool.
type Ticks struct {
	m *staged.Map[int32, *Tick]
}

func NewTicks() *Ticks {
	return &Ticks{m: staged.New[int32, *Tick]((*Tick).Clone)}
}

// Stage returns a view whose updates stay local until Commit.
func (t *Ticks) Stage() *Ticks {
	return &Ticks{m: t.m.Stage()}
}

func (t *Ticks) Commit() {
	t.m.Commit()
}

// Get returns the record for tick, or nil.
func (t *Ticks) Get(tick int32) *Tick {
	info, ok := t.m.Get(tick)
	if !ok {
		return nil
	}
	return info
}

// Put replaces the record for tick.
func (t *Ticks) Put(tick int32, info *Tick) {
	t.m.Set(tick, info)
}

// Range visits every committed record.
func (t *Ticks) Range(fn func(tick int32, info *Tick) bool) {
	t.m.Range(fn)
}

// Update applies liquidityDelta to tick and reports whether the tick flipped
// between initialized and uninitialized. On first initialization all growth to
// date is attributed below the tick when it is at or below the current tick.
func (t *Ticks) Update(tick, tickCurrent int32, liquidityDelta *big.Int, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int, upper bool, maxLiquidity *big.Int) (bool, error) {
	info, ok := t.m.Get(tick)
	if !ok {
		info = newTick()
	}

	grossBefore := info.LiquidityGross
	grossAfter, err := AddDelta(grossBefore, liquidityDelta)
	if err != nil {
		return false, fmt.Errorf("update tick %d: %w", tick, err)
	}
	if grossAfter.Cmp(maxLiquidity) > 0 {
		return false, fmt.Errorf("update tick %d: %w", tick, ErrLiquidityOverflow)
	}

	flipped := (grossAfter.Sign() == 0) != (grossBefore.Sign() == 0)

	if grossBefore.Sign() == 0 {
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128 = *feeGrowthGlobal0
			info.FeeGrowthOutside1X128 = *feeGrowthGlobal1
		}
		info.Initialized = true
	}

	info.LiquidityGross = grossAfter
	if upper {
		info.LiquidityNet = new(big.Int).Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet = new(big.Int).Add(info.LiquidityNet, liquidityDelta)
	}
	t.m.Set(tick, info)
	return flipped, nil
}

// Clear removes the record for tick.
func (t *Ticks) Clear(tick int32) {
	t.m.Delete(tick)
}

// Cross flips the outside growth of tick as the price moves across it and
// returns the tick's net liquidity.
func (t *Ticks) Cross(tick int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) *big.Int {
	info, ok := t.m.Get(tick)
	if !ok {
		return new(big.Int)
	}
	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0, &info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1, &info.FeeGrowthOutside1X128)
	t.m.Set(tick, info)
	return new(big.Int).Set(info.LiquidityNet)
}

// FeeGrowthInside returns the per-liquidity fee growth accrued between
// tickLower and tickUpper: global - below - above, all modulo 2^256.
func (t *Ticks) FeeGrowthInside(tickLower, tickUpper, tickCurrent int32, feeGrowthGlobal0, feeGrowthGlobal1 *uint256.Int) (uint256.Int, uint256.Int) {
	lower := t.Get(tickLower)
	if lower == nil {
		lower = newTick()
	}
	upper := t.Get(tickUpper)
	if upper == nil {
		upper = newTick()
	}

	var below0, below1 uint256.Int
	if tickCurrent >= tickLower {
		below0, below1 = lower.FeeGrowthOutside0X128, lower.FeeGrowthOutside1X128
	} else {
		below0.Sub(feeGrowthGlobal0, &lower.FeeGrowthOutside0X128)
		below1.Sub(feeGrowthGlobal1, &lower.FeeGrowthOutside1X128)
	}

	var above0, above1 uint256.Int
	if tickCurrent < tickUpper {
		above0, above1 = upper.FeeGrowthOutside0X128, upper.FeeGrowthOutside1X128
	} else {
		above0.Sub(feeGrowthGlobal0, &upper.FeeGrowthOutside0X128)
		above1.Sub(feeGrowthGlobal1, &upper.FeeGrowthOutside1X128)
	}

	var inside0, inside1 uint256.Int
	inside0.Sub(feeGrowthGlobal0, &below0)
	inside0.Sub(&inside0, &above0)
	inside1.Sub(feeGrowthGlobal1, &below1)
	inside1.Sub(&inside1, &above1)
	return inside0, inside1
}
