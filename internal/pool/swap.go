package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"adaptivePool/internal/ledger"
	"adaptivePool/internal/pricemath"
)

// SwapParams describes a swap. AmountSpecified is positive for exact input
// and negative for exact output.
type SwapParams struct {
	Sender            common.Address
	Recipient         common.Address
	ZeroForOne        bool
	AmountSpecified   *big.Int
	SqrtPriceLimitX96 *big.Int
	Data              []byte
	Settle            SettleFunc
}

// SwapResult holds the signed pool deltas and the post-swap price.
type SwapResult struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
	Fee          uint16
	FeeAmount    *big.Int
	TicksCrossed int
}

// swapStep is the loop state between tick crossings.
type swapStep struct {
	remaining  *big.Int
	calculated *big.Int
	sqrtPrice  *big.Int
	tick       int32
	liquidity  *big.Int
	feePaid    *big.Int
	crossed    int
}

// Swap trades along the curve until the specified amount is exhausted or the
// price limit is reached, then settles through params.Settle.
func (p *Pool) Swap(ctx context.Context, params SwapParams) (SwapResult, error) {
	unlock, err := p.lock()
	if err != nil {
		return SwapResult{}, err
	}
	defer unlock()

	res, err := p.swap(ctx, params)
	if err != nil {
		p.logger.Debug("swap failed", zap.Bool("zero_for_one", params.ZeroForOne), zap.Error(err))
		return SwapResult{}, err
	}
	return res, nil
}

func (p *Pool) swap(ctx context.Context, params SwapParams) (SwapResult, error) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return SwapResult{}, ErrInvalidAmount
	}

	tx := p.begin()
	if !tx.state.Initialized() {
		return SwapResult{}, ErrNotInitialized
	}
	if err := checkPriceLimit(tx.state.SqrtPriceX96, params.SqrtPriceLimitX96, params.ZeroForOne); err != nil {
		return SwapResult{}, err
	}

	err := p.callHook(tx, HookBeforeSwap, func(h Hooks, st *HookState) error {
		return h.BeforeSwap(p.cfg.Address, st, params)
	})
	if err != nil {
		return SwapResult{}, fmt.Errorf("before swap hook: %w", err)
	}

	feeBefore := p.state.Fee
	step, err := p.stepSwap(tx, params)
	if err != nil {
		return SwapResult{}, err
	}

	exactIn := params.AmountSpecified.Sign() > 0
	specifiedUsed := new(big.Int).Sub(params.AmountSpecified, step.remaining)
	var amount0, amount1 *big.Int
	if params.ZeroForOne == exactIn {
		amount0, amount1 = specifiedUsed, step.calculated
	} else {
		amount0, amount1 = step.calculated, specifiedUsed
	}

	tx.state.SqrtPriceX96 = step.sqrtPrice
	tx.state.Tick = step.tick
	tx.state.Liquidity = step.liquidity

	if err := settle(ctx, tx, params.Settle, amount0, amount1, params.Data); err != nil {
		return SwapResult{}, err
	}

	err = p.callHook(tx, HookAfterSwap, func(h Hooks, st *HookState) error {
		return h.AfterSwap(p.cfg.Address, st, params, amount0, amount1)
	})
	if err != nil {
		return SwapResult{}, fmt.Errorf("after swap hook: %w", err)
	}

	p.commit(tx)
	if tx.state.Fee != feeBefore {
		p.logger.Debug("fee changed", zap.Uint16("from", feeBefore), zap.Uint16("to", tx.state.Fee))
	}

	return SwapResult{
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: new(big.Int).Set(step.sqrtPrice),
		Tick:         step.tick,
		Liquidity:    new(big.Int).Set(step.liquidity),
		Fee:          tx.state.Fee,
		FeeAmount:    step.feePaid,
		TicksCrossed: step.crossed,
	}, nil
}

func checkPriceLimit(current, limit *big.Int, zeroForOne bool) error {
	if limit == nil {
		return fmt.Errorf("missing limit: %w", ErrInvalidPriceLimit)
	}
	if zeroForOne {
		if limit.Cmp(current) >= 0 || limit.Cmp(pricemath.MinSqrtRatio) <= 0 {
			return fmt.Errorf("limit %s for price %s: %w", limit, current, ErrInvalidPriceLimit)
		}
		return nil
	}
	if limit.Cmp(current) <= 0 || limit.Cmp(pricemath.MaxSqrtRatio) >= 0 {
		return fmt.Errorf("limit %s for price %s: %w", limit, current, ErrInvalidPriceLimit)
	}
	return nil
}

// stepSwap runs the stepping loop against the staged ledgers. Fee growth of
// the input token accrues directly into the staged global state.
func (p *Pool) stepSwap(tx *txn, params SwapParams) (swapStep, error) {
	spacing := p.cfg.TickSpacing
	exactIn := params.AmountSpecified.Sign() > 0
	fee := uint32(tx.state.Fee)

	s := swapStep{
		remaining:  new(big.Int).Set(params.AmountSpecified),
		calculated: new(big.Int),
		sqrtPrice:  new(big.Int).Set(tx.state.SqrtPriceX96),
		tick:       tx.state.Tick,
		liquidity:  new(big.Int).Set(tx.state.Liquidity),
		feePaid:    new(big.Int),
	}
	growth := &tx.state.FeeGrowthGlobal1X128
	if params.ZeroForOne {
		growth = &tx.state.FeeGrowthGlobal0X128
	}

	for s.remaining.Sign() != 0 && s.sqrtPrice.Cmp(params.SqrtPriceLimitX96) != 0 {
		start := s.sqrtPrice

		next, initialized := tx.bitmap.NextInitializedTick(s.tick, spacing, params.ZeroForOne)
		sqrtNext, err := pricemath.SqrtRatioAtTick(next)
		if err != nil {
			return swapStep{}, err
		}

		target := sqrtNext
		if params.ZeroForOne && sqrtNext.Cmp(params.SqrtPriceLimitX96) < 0 ||
			!params.ZeroForOne && sqrtNext.Cmp(params.SqrtPriceLimitX96) > 0 {
			target = params.SqrtPriceLimitX96
		}

		step, err := pricemath.ComputeSwapStep(s.sqrtPrice, target, s.liquidity, s.remaining, fee)
		if err != nil {
			return swapStep{}, fmt.Errorf("swap step at tick %d: %w", s.tick, err)
		}
		s.sqrtPrice = step.SqrtPriceNextX96
		s.feePaid.Add(s.feePaid, step.FeeAmount)

		spent := new(big.Int).Add(step.AmountIn, step.FeeAmount)
		if exactIn {
			s.remaining.Sub(s.remaining, spent)
			s.calculated.Sub(s.calculated, step.AmountOut)
		} else {
			s.remaining.Add(s.remaining, step.AmountOut)
			s.calculated.Add(s.calculated, spent)
		}

		if s.liquidity.Sign() > 0 && step.FeeAmount.Sign() > 0 {
			growth.Add(growth, ledger.GrowthPerLiquidity(step.FeeAmount, s.liquidity))
		}

		if s.sqrtPrice.Cmp(sqrtNext) == 0 {
			if initialized {
				net := tx.ticks.Cross(next, &tx.state.FeeGrowthGlobal0X128, &tx.state.FeeGrowthGlobal1X128)
				if params.ZeroForOne {
					net.Neg(net)
				}
				s.liquidity, err = ledger.AddDelta(s.liquidity, net)
				if err != nil {
					return swapStep{}, fmt.Errorf("cross tick %d: %w", next, err)
				}
				s.crossed++
			}
			if params.ZeroForOne {
				s.tick = next - 1
			} else {
				s.tick = next
			}
		} else if s.sqrtPrice.Cmp(start) != 0 {
			s.tick, err = pricemath.TickAtSqrtRatio(s.sqrtPrice)
			if err != nil {
				return swapStep{}, err
			}
		}
	}
	return s, nil
}
