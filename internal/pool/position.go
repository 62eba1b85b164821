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

// MintParams adds Amount liquidity to the owner's position over [TickLower, TickUpper).
type MintParams struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Amount    *big.Int
	Data      []byte
	Settle    SettleFunc
}

// BurnParams removes Amount liquidity. A zero amount only credits earned fees.
type BurnParams struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Amount    *big.Int
}

// CollectParams withdraws up to the requested owed amounts.
type CollectParams struct {
	Owner            common.Address
	Recipient        common.Address
	TickLower        int32
	TickUpper        int32
	Amount0Requested *big.Int
	Amount1Requested *big.Int
}

// Mint adds liquidity and settles the token amounts it requires.
func (p *Pool) Mint(ctx context.Context, params MintParams) (*big.Int, *big.Int, error) {
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	unlock, err := p.lock()
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	tx := p.begin()
	mp := ModifyPositionParams{
		Owner:          params.Owner,
		TickLower:      params.TickLower,
		TickUpper:      params.TickUpper,
		LiquidityDelta: new(big.Int).Set(params.Amount),
	}
	amount0, amount1, err := p.modifyPosition(tx, mp)
	if err != nil {
		p.logger.Debug("mint failed", zap.Stringer("owner", params.Owner), zap.Error(err))
		return nil, nil, err
	}
	if err := settle(ctx, tx, params.Settle, amount0, amount1, params.Data); err != nil {
		return nil, nil, err
	}
	if err := p.afterModifyPosition(tx, mp, amount0, amount1); err != nil {
		return nil, nil, err
	}

	p.commit(tx)
	return amount0, amount1, nil
}

// Burn removes liquidity and credits the released tokens, plus any fees
// earned, to the position's owed balances. Nothing is transferred.
func (p *Pool) Burn(params BurnParams) (*big.Int, *big.Int, error) {
	if params.Amount == nil || params.Amount.Sign() < 0 {
		return nil, nil, ErrInvalidAmount
	}
	unlock, err := p.lock()
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	tx := p.begin()
	mp := ModifyPositionParams{
		Owner:          params.Owner,
		TickLower:      params.TickLower,
		TickUpper:      params.TickUpper,
		LiquidityDelta: new(big.Int).Neg(params.Amount),
	}
	amount0, amount1, err := p.modifyPosition(tx, mp)
	if err != nil {
		p.logger.Debug("burn failed", zap.Stringer("owner", params.Owner), zap.Error(err))
		return nil, nil, err
	}
	amount0.Neg(amount0)
	amount1.Neg(amount1)

	key := ledger.PositionKey{Owner: params.Owner, TickLower: params.TickLower, TickUpper: params.TickUpper}
	if amount0.Sign() > 0 || amount1.Sign() > 0 {
		pos := tx.positions.Get(key)
		pos.TokensOwed0 = new(big.Int).Add(pos.TokensOwed0, amount0)
		pos.TokensOwed1 = new(big.Int).Add(pos.TokensOwed1, amount1)
		tx.positions.Put(key, pos)
	}
	if err := p.afterModifyPosition(tx, mp, amount0, amount1); err != nil {
		return nil, nil, err
	}

	p.commit(tx)
	return amount0, amount1, nil
}

// Collect pays min(requested, owed) of each token out of the reserves.
func (p *Pool) Collect(params CollectParams) (*big.Int, *big.Int, error) {
	unlock, err := p.lock()
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	tx := p.begin()
	if !tx.state.Initialized() {
		return nil, nil, ErrNotInitialized
	}
	key := ledger.PositionKey{Owner: params.Owner, TickLower: params.TickLower, TickUpper: params.TickUpper}
	pos := tx.positions.Get(key)
	if pos == nil {
		return new(big.Int), new(big.Int), nil
	}

	amount0 := minAmount(params.Amount0Requested, pos.TokensOwed0)
	amount1 := minAmount(params.Amount1Requested, pos.TokensOwed1)
	pos.TokensOwed0 = new(big.Int).Sub(pos.TokensOwed0, amount0)
	pos.TokensOwed1 = new(big.Int).Sub(pos.TokensOwed1, amount1)
	tx.positions.Put(key, pos)

	if err := payOut(tx, new(big.Int).Neg(amount0), new(big.Int).Neg(amount1)); err != nil {
		return nil, nil, err
	}

	p.commit(tx)
	return amount0, amount1, nil
}

func minAmount(requested, owed *big.Int) *big.Int {
	if requested == nil || requested.Cmp(owed) > 0 {
		return new(big.Int).Set(owed)
	}
	if requested.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(requested)
}

func (p *Pool) checkTicks(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("lower %d >= upper %d: %w", lower, upper, ErrInvalidTickRange)
	}
	if lower < pricemath.MinTick || upper > pricemath.MaxTick {
		return fmt.Errorf("[%d, %d]: %w", lower, upper, ErrInvalidTickRange)
	}
	if lower%p.cfg.TickSpacing != 0 || upper%p.cfg.TickSpacing != 0 {
		return fmt.Errorf("[%d, %d] not multiples of %d: %w", lower, upper, p.cfg.TickSpacing, ErrInvalidTickRange)
	}
	return nil
}

// modifyPosition applies a liquidity change to the ticks, the bitmap, the
// position and the active liquidity, and returns the signed token amounts it
// implies. Fee growth inside is recomputed before liquidity changes, so fees
// earned so far are credited at the old liquidity.
func (p *Pool) modifyPosition(tx *txn, params ModifyPositionParams) (*big.Int, *big.Int, error) {
	if !tx.state.Initialized() {
		return nil, nil, ErrNotInitialized
	}
	if err := p.checkTicks(params.TickLower, params.TickUpper); err != nil {
		return nil, nil, err
	}
	err := p.callHook(tx, HookBeforeModifyPosition, func(h Hooks, st *HookState) error {
		return h.BeforeModifyPosition(p.cfg.Address, st, params)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("before modify position hook: %w", err)
	}

	st := &tx.state
	delta := params.LiquidityDelta
	spacing := p.cfg.TickSpacing

	var flippedLower, flippedUpper bool
	if delta.Sign() != 0 {
		flippedLower, err = tx.ticks.Update(params.TickLower, st.Tick, delta, &st.FeeGrowthGlobal0X128, &st.FeeGrowthGlobal1X128, false, p.maxLiquidity)
		if err != nil {
			return nil, nil, err
		}
		flippedUpper, err = tx.ticks.Update(params.TickUpper, st.Tick, delta, &st.FeeGrowthGlobal0X128, &st.FeeGrowthGlobal1X128, true, p.maxLiquidity)
		if err != nil {
			return nil, nil, err
		}
		if flippedLower {
			if err := tx.bitmap.Flip(params.TickLower, spacing); err != nil {
				return nil, nil, err
			}
		}
		if flippedUpper {
			if err := tx.bitmap.Flip(params.TickUpper, spacing); err != nil {
				return nil, nil, err
			}
		}
	}

	inside0, inside1 := tx.ticks.FeeGrowthInside(params.TickLower, params.TickUpper, st.Tick, &st.FeeGrowthGlobal0X128, &st.FeeGrowthGlobal1X128)
	key := ledger.PositionKey{Owner: params.Owner, TickLower: params.TickLower, TickUpper: params.TickUpper}
	if _, err := tx.positions.Update(key, delta, &inside0, &inside1); err != nil {
		return nil, nil, err
	}

	if delta.Sign() < 0 {
		if flippedLower {
			tx.ticks.Clear(params.TickLower)
		}
		if flippedUpper {
			tx.ticks.Clear(params.TickUpper)
		}
	}

	amount0, amount1 := new(big.Int), new(big.Int)
	if delta.Sign() == 0 {
		return amount0, amount1, nil
	}

	sqrtLower, err := pricemath.SqrtRatioAtTick(params.TickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := pricemath.SqrtRatioAtTick(params.TickUpper)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case st.Tick < params.TickLower:
		amount0, err = pricemath.SignedAmount0Delta(sqrtLower, sqrtUpper, delta)
	case st.Tick < params.TickUpper:
		amount0, err = pricemath.SignedAmount0Delta(st.SqrtPriceX96, sqrtUpper, delta)
		if err != nil {
			return nil, nil, err
		}
		amount1 = pricemath.SignedAmount1Delta(sqrtLower, st.SqrtPriceX96, delta)
		st.Liquidity, err = ledger.AddDelta(st.Liquidity, delta)
	default:
		amount1 = pricemath.SignedAmount1Delta(sqrtLower, sqrtUpper, delta)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) afterModifyPosition(tx *txn, params ModifyPositionParams, amount0, amount1 *big.Int) error {
	err := p.callHook(tx, HookAfterModifyPosition, func(h Hooks, st *HookState) error {
		return h.AfterModifyPosition(p.cfg.Address, st, params, amount0, amount1)
	})
	if err != nil {
		return fmt.Errorf("after modify position hook: %w", err)
	}
	return nil
}
