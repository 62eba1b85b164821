package pool

import (
	"math/big"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
)

// GlobalState is the pool-wide state mutated by every swap and position change.
type GlobalState struct {
	SqrtPriceX96   *big.Int
	Tick           int32
	Fee            uint16
	TimepointIndex uint16
	PluginConfig   HookFlags
	Liquidity      *big.Int

	FeeGrowthGlobal0X128 uint256.Int
	FeeGrowthGlobal1X128 uint256.Int

	// Balance0 and Balance1 are the token reserves held by the pool.
	Balance0 *big.Int
	Balance1 *big.Int
}

// Initialized reports whether a price has been set.
func (s GlobalState) Initialized() bool {
	return s.SqrtPriceX96 != nil
}

// Clone returns a deep copy.
func (s GlobalState) Clone() GlobalState {
	cp := s
	if s.SqrtPriceX96 != nil {
		cp.SqrtPriceX96 = new(big.Int).Set(s.SqrtPriceX96)
	}
	cp.Liquidity = new(big.Int).Set(s.Liquidity)
	cp.Balance0 = new(big.Int).Set(s.Balance0)
	cp.Balance1 = new(big.Int).Set(s.Balance1)
	return cp
}

func newGlobalState(fee uint16) GlobalState {
	return GlobalState{
		Fee:       fee,
		Liquidity: new(big.Int),
		Balance0:  new(big.Int),
		Balance1:  new(big.Int),
	}
}

// Clock supplies block timestamps.
type Clock interface {
	Now() uint32
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint32 {
	return uint32(time.Now().Unix())
}

// ManualClock is a settable clock, used when replaying history and in tests.
type ManualClock struct {
	ts atomic.Uint32
}

func NewManualClock(ts uint32) *ManualClock {
	c := &ManualClock{}
	c.ts.Store(ts)
	return c
}

func (c *ManualClock) Now() uint32 {
	return c.ts.Load()
}

func (c *ManualClock) Set(ts uint32) {
	c.ts.Store(ts)
}

func (c *ManualClock) Advance(seconds uint32) {
	c.ts.Add(seconds)
}
