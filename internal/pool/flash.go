package pool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"adaptivePool/internal/ledger"
	"adaptivePool/internal/pricemath"
)

// FlashParams lends Amount0 and Amount1 to Recipient for the duration of the
// settlement callback.
type FlashParams struct {
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	Data      []byte
	Settle    SettleFunc
}

// Flash lends reserves against a fee at the current rate, rounded up. The
// callback is asked for principal plus fee; everything paid beyond the
// principal accrues to in-range liquidity as fee growth.
func (p *Pool) Flash(ctx context.Context, params FlashParams) (*big.Int, *big.Int, error) {
	unlock, err := p.lock()
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	tx := p.begin()
	if !tx.state.Initialized() {
		return nil, nil, ErrNotInitialized
	}
	if tx.state.Liquidity.Sign() == 0 {
		return nil, nil, ErrNoLiquidity
	}
	if params.Settle == nil {
		return nil, nil, fmt.Errorf("flash without callback: %w", ErrSettlementFailed)
	}

	amount0, amount1 := nonNegative(params.Amount0), nonNegative(params.Amount1)
	fee0 := feeRoundingUp(amount0, tx.state.Fee)
	fee1 := feeRoundingUp(amount1, tx.state.Fee)

	if err := payOut(tx, new(big.Int).Neg(amount0), new(big.Int).Neg(amount1)); err != nil {
		return nil, nil, err
	}

	due0 := new(big.Int).Add(amount0, fee0)
	due1 := new(big.Int).Add(amount1, fee1)
	payment, err := params.Settle(ctx, due0, due1, params.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("flash callback: %w: %w", ErrFlashNotRepaid, err)
	}
	in0, in1 := paid(payment.Amount0), paid(payment.Amount1)
	if in0.Cmp(due0) < 0 || in1.Cmp(due1) < 0 {
		return nil, nil, fmt.Errorf("repaid %s/%s of %s/%s: %w", in0, in1, due0, due1, ErrFlashNotRepaid)
	}

	tx.state.Balance0 = new(big.Int).Add(tx.state.Balance0, in0)
	tx.state.Balance1 = new(big.Int).Add(tx.state.Balance1, in1)

	paid0 := new(big.Int).Sub(in0, amount0)
	paid1 := new(big.Int).Sub(in1, amount1)
	if paid0.Sign() > 0 {
		g := ledger.GrowthPerLiquidity(paid0, tx.state.Liquidity)
		tx.state.FeeGrowthGlobal0X128.Add(&tx.state.FeeGrowthGlobal0X128, g)
	}
	if paid1.Sign() > 0 {
		g := ledger.GrowthPerLiquidity(paid1, tx.state.Liquidity)
		tx.state.FeeGrowthGlobal1X128.Add(&tx.state.FeeGrowthGlobal1X128, g)
	}

	p.commit(tx)
	return paid0, paid1, nil
}

func nonNegative(x *big.Int) *big.Int {
	if x == nil || x.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

func feeRoundingUp(amount *big.Int, fee uint16) *big.Int {
	num := new(big.Int).Mul(amount, big.NewInt(int64(fee)))
	den := big.NewInt(pricemath.FeeDenominator)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
