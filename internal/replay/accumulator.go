package replay

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"adaptivePool/internal/model"
)

// Accumulator holds the aggregates of one pool window.
type Accumulator struct {
	ChainID     uint64
	PoolAddress string
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	Volume0     *big.Int
	Volume1     *big.Int
	Fee0        *big.Int
	Fee1        *big.Int
	MinFee      uint16
	MaxFee      uint16
	CloseFee    uint16
	CloseTick   int32
	Volatility  uint64

	feeSum uint64
}

func NewAccumulator(chainID uint64, pool string, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     chainID,
		PoolAddress: pool,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		Fee0:        big.NewInt(0),
		Fee1:        big.NewInt(0),
	}
}

// AddOutcome folds an applied event into the window. Only swaps carry
// volume; every outcome moves the closing fee and tick.
func (a *Accumulator) AddOutcome(out Outcome, volatility uint64) {
	a.CloseFee = out.Fee
	a.CloseTick = out.Tick
	a.Volatility = volatility

	if out.Swap == nil {
		return
	}
	res := out.Swap
	absAdd(a.Volume0, res.Amount0)
	absAdd(a.Volume1, res.Amount1)
	if res.FeeAmount != nil {
		if out.ZeroForOne {
			a.Fee0.Add(a.Fee0, res.FeeAmount)
		} else {
			a.Fee1.Add(a.Fee1, res.FeeAmount)
		}
	}

	if a.SwapCount == 0 || res.Fee < a.MinFee {
		a.MinFee = res.Fee
	}
	if res.Fee > a.MaxFee {
		a.MaxFee = res.Fee
	}
	a.feeSum += uint64(res.Fee)
	a.SwapCount++
}

// AvgFee is the mean fee over the window's swaps, in pips.
func (a *Accumulator) AvgFee() decimal.Decimal {
	if a.SwapCount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(a.feeSum)).
		Div(decimal.NewFromInt(int64(a.SwapCount))).
		Round(2)
}

func (a *Accumulator) Metrics() model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		ChainID:        a.ChainID,
		PoolAddress:    a.PoolAddress,
		WindowSizeSecs: int64(a.WindowEnd - a.WindowStart),
		WindowStart:    time.Unix(int64(a.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(a.WindowEnd), 0).UTC(),
		SwapCount:      a.SwapCount,
		Volume0:        a.Volume0.String(),
		Volume1:        a.Volume1.String(),
		Fee0:           a.Fee0.String(),
		Fee1:           a.Fee1.String(),
		MinFee:         a.MinFee,
		MaxFee:         a.MaxFee,
		AvgFee:         a.AvgFee().String(),
		CloseFee:       a.CloseFee,
		CloseTick:      a.CloseTick,
		Volatility:     a.Volatility,
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func absAdd(target, value *big.Int) {
	if value == nil {
		return
	}
	target.Add(target, new(big.Int).Abs(value))
}
