package pool

import (
	"context"
	"fmt"
	"math/big"
)

// Payment is what a settlement callback delivered to the pool.
type Payment struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// SettleFunc is invoked once the pool knows the signed deltas of a call.
// Positive amounts are owed to the pool; negative amounts are paid out by it.
// The callback reports what it actually delivered.
type SettleFunc func(ctx context.Context, amount0, amount1 *big.Int, data []byte) (Payment, error)

func owed(amount *big.Int) *big.Int {
	if amount.Sign() > 0 {
		return amount
	}
	return new(big.Int)
}

func paid(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() < 0 {
		return new(big.Int)
	}
	return amount
}

// settle pays out negative deltas from the reserves, asks the callback for
// the positive ones and books what arrives.
func settle(ctx context.Context, tx *txn, fn SettleFunc, amount0, amount1 *big.Int, data []byte) error {
	if err := payOut(tx, amount0, amount1); err != nil {
		return err
	}
	if fn == nil {
		if amount0.Sign() > 0 || amount1.Sign() > 0 {
			return fmt.Errorf("no settlement callback: %w", ErrSettlementFailed)
		}
		return nil
	}

	payment, err := fn(ctx, amount0, amount1, data)
	if err != nil {
		return fmt.Errorf("settlement callback: %w: %w", ErrSettlementFailed, err)
	}
	in0, in1 := paid(payment.Amount0), paid(payment.Amount1)
	if in0.Cmp(owed(amount0)) < 0 {
		return fmt.Errorf("token0 delivered %s of %s: %w", in0, amount0, ErrSettlementFailed)
	}
	if in1.Cmp(owed(amount1)) < 0 {
		return fmt.Errorf("token1 delivered %s of %s: %w", in1, amount1, ErrSettlementFailed)
	}
	tx.state.Balance0 = new(big.Int).Add(tx.state.Balance0, in0)
	tx.state.Balance1 = new(big.Int).Add(tx.state.Balance1, in1)
	return nil
}

// payOut debits negative deltas from the reserves.
func payOut(tx *txn, amount0, amount1 *big.Int) error {
	if amount0.Sign() < 0 {
		next := new(big.Int).Add(tx.state.Balance0, amount0)
		if next.Sign() < 0 {
			return fmt.Errorf("pay %s token0: %w", new(big.Int).Neg(amount0), ErrInsufficientReserves)
		}
		tx.state.Balance0 = next
	}
	if amount1.Sign() < 0 {
		next := new(big.Int).Add(tx.state.Balance1, amount1)
		if next.Sign() < 0 {
			return fmt.Errorf("pay %s token1: %w", new(big.Int).Neg(amount1), ErrInsufficientReserves)
		}
		tx.state.Balance1 = next
	}
	return nil
}
