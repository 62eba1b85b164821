package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"adaptivePool/internal/model"
	"adaptivePool/internal/pool"
	"adaptivePool/internal/pricemath"
)

var (
	ErrOutOfOrder      = errors.New("event out of order")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrInvalidEvent    = errors.New("invalid event payload")
	ErrNoInitialPrice  = errors.New("pool not initialized and no initial price")
	ErrUnsupportedMode = errors.New("unsupported swap mode")
)

// SwapMode selects how recorded swaps are re-executed.
type SwapMode string

const (
	// SwapModePrice moves the pool to the recorded post-swap price, so the
	// price path matches the recording and only the fees differ.
	SwapModePrice SwapMode = "price"
	// SwapModeAmount re-executes the recorded input amount as an exact-input
	// swap, so the adaptive fee also shifts the resulting price.
	SwapModeAmount SwapMode = "amount"
)

func ParseSwapMode(s string) (SwapMode, error) {
	switch m := SwapMode(s); m {
	case SwapModePrice, SwapModeAmount:
		return m, nil
	case "":
		return SwapModePrice, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// unbounded is the exact-input amount used to drive the pool to a price.
var unbounded = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))

// Outcome describes what applying one event did.
type Outcome struct {
	EventName   string
	Applied     bool
	Initialized bool
	Swap        *pool.SwapResult
	ZeroForOne  bool
	Fee         uint16
	Tick        int32
}

// Replayer applies typed events to a session in log order.
type Replayer struct {
	session   *Session
	mode      SwapMode
	initPrice *big.Int
	cursor    *model.ReplayCursor
	logger    *zap.Logger
}

// NewReplayer returns a replayer. initPrice may be nil, in which case the
// pool is initialized at the post-swap price of the first recorded swap.
func NewReplayer(session *Session, mode SwapMode, initPrice *big.Int, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{session: session, mode: mode, initPrice: initPrice, logger: logger}
}

// Cursor is the last applied event, nil before the first one.
func (r *Replayer) Cursor() *model.ReplayCursor {
	if r.cursor == nil {
		return nil
	}
	c := *r.cursor
	return &c
}

// ResumeAfter makes the replayer skip events at or before c.
func (r *Replayer) ResumeAfter(c *model.ReplayCursor) {
	if c == nil {
		r.cursor = nil
		return
	}
	cc := *c
	r.cursor = &cc
}

// Seen reports whether an event at (block, logIndex) is at or before the
// cursor and must be skipped.
func (r *Replayer) Seen(block, logIndex uint64) bool {
	return r.cursor != nil && !r.cursor.After(block, logIndex)
}

// Apply executes rec against the pool. Events the pool rejects leave it
// unchanged and return the pool's error; the cursor still advances past them.
func (r *Replayer) Apply(ctx context.Context, rec model.TypedEventRecord) (Outcome, error) {
	out := Outcome{EventName: rec.EventName}
	if r.Seen(rec.BlockNumber, rec.LogIndex) {
		return out, nil
	}
	if rec.Timestamp > uint64(^uint32(0)) {
		return out, fmt.Errorf("timestamp %d: %w", rec.Timestamp, ErrInvalidEvent)
	}
	if r.cursor != nil && rec.Timestamp < r.cursor.Timestamp {
		return out, fmt.Errorf("%w: block %d log %d at %d precedes %d",
			ErrOutOfOrder, rec.BlockNumber, rec.LogIndex, rec.Timestamp, r.cursor.Timestamp)
	}

	r.session.Clock.Set(uint32(rec.Timestamp))
	r.cursor = &model.ReplayCursor{BlockNumber: rec.BlockNumber, LogIndex: rec.LogIndex, Timestamp: rec.Timestamp}

	err := r.apply(ctx, rec, &out)
	st := r.session.Pool.State()
	out.Fee, out.Tick = st.Fee, st.Tick
	return out, err
}

func (r *Replayer) apply(ctx context.Context, rec model.TypedEventRecord, out *Outcome) error {
	p := r.session.Pool

	if !p.State().Initialized() && r.initPrice != nil {
		if err := p.Initialize(r.initPrice); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		out.Initialized = true
	}

	switch rec.EventName {
	case model.EventSwap:
		var ev model.SwapEventData
		if err := decodePayload(rec, &ev); err != nil {
			return err
		}
		return r.swap(ctx, ev, out)

	case model.EventMint:
		var ev model.MintEventData
		if err := decodePayload(rec, &ev); err != nil {
			return err
		}
		owner, amount, err := ownerAndAmount(ev.Owner, ev.Amount)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return nil
		}
		if err := r.requireInitialized(); err != nil {
			return err
		}
		if _, _, err := p.Mint(ctx, pool.MintParams{
			Owner: owner, TickLower: ev.TickLower, TickUpper: ev.TickUpper, Amount: amount, Settle: payOwed,
		}); err != nil {
			return err
		}

	case model.EventBurn:
		var ev model.BurnEventData
		if err := decodePayload(rec, &ev); err != nil {
			return err
		}
		owner, amount, err := ownerAndAmount(ev.Owner, ev.Amount)
		if err != nil {
			return err
		}
		if err := r.requireInitialized(); err != nil {
			return err
		}
		if _, _, err := p.Burn(pool.BurnParams{
			Owner: owner, TickLower: ev.TickLower, TickUpper: ev.TickUpper, Amount: amount,
		}); err != nil {
			return err
		}

	case model.EventCollect:
		var ev model.CollectEventData
		if err := decodePayload(rec, &ev); err != nil {
			return err
		}
		owner, amount0, err := ownerAndAmount(ev.Owner, ev.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseAmount(ev.Amount1)
		if err != nil {
			return err
		}
		if _, _, err := p.Collect(pool.CollectParams{
			Owner:            owner,
			Recipient:        common.HexToAddress(ev.Recipient),
			TickLower:        ev.TickLower,
			TickUpper:        ev.TickUpper,
			Amount0Requested: amount0,
			Amount1Requested: amount1,
		}); err != nil {
			return err
		}

	case model.EventFlash:
		var ev model.FlashEventData
		if err := decodePayload(rec, &ev); err != nil {
			return err
		}
		if err := r.requireInitialized(); err != nil {
			return err
		}
		if err := r.flash(ctx, ev); err != nil {
			return err
		}

	case model.EventFee:
		var ev model.FeeEventData
		if err := decodePayload(rec, &ev); err != nil {
			return err
		}
		if cur := p.State().Fee; cur != ev.Fee {
			r.logger.Debug("recorded fee differs from replayed fee",
				zap.Uint64("block", rec.BlockNumber),
				zap.Uint16("recorded", ev.Fee),
				zap.Uint16("replayed", cur))
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, rec.EventName)
	}

	out.Applied = true
	return nil
}

func (r *Replayer) requireInitialized() error {
	if r.session.Pool.State().Initialized() {
		return nil
	}
	return fmt.Errorf("%w: %w", pool.ErrNotInitialized, ErrNoInitialPrice)
}

func (r *Replayer) swap(ctx context.Context, ev model.SwapEventData, out *Outcome) error {
	p := r.session.Pool
	target, err := parseAmount(ev.SqrtPriceX96)
	if err != nil {
		return err
	}

	if !p.State().Initialized() {
		// the first swap only supplies the starting price
		if err := p.Initialize(target); err != nil {
			return fmt.Errorf("initialize at first swap: %w", err)
		}
		out.Initialized = true
		return nil
	}

	params := pool.SwapParams{
		Sender:    common.HexToAddress(ev.Sender),
		Recipient: common.HexToAddress(ev.Recipient),
		Settle:    payOwed,
	}

	switch r.mode {
	case SwapModeAmount:
		amount0, err := parseSigned(ev.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseSigned(ev.Amount1)
		if err != nil {
			return err
		}
		switch {
		case amount0.Sign() > 0:
			params.ZeroForOne, params.AmountSpecified = true, amount0
			params.SqrtPriceLimitX96 = new(big.Int).Add(pricemath.MinSqrtRatio, big.NewInt(1))
		case amount1.Sign() > 0:
			params.ZeroForOne, params.AmountSpecified = false, amount1
			params.SqrtPriceLimitX96 = new(big.Int).Sub(pricemath.MaxSqrtRatio, big.NewInt(1))
		default:
			return nil
		}

	case SwapModePrice, "":
		cur := p.State().SqrtPriceX96
		cmp := target.Cmp(cur)
		if cmp == 0 {
			return nil
		}
		params.ZeroForOne = cmp < 0
		params.AmountSpecified = unbounded
		params.SqrtPriceLimitX96 = clampLimit(target)

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, r.mode)
	}

	res, err := p.Swap(ctx, params)
	if err != nil {
		return err
	}
	out.Applied = true
	out.Swap = &res
	out.ZeroForOne = params.ZeroForOne
	return nil
}

// flash pays back principal plus the larger of the recorded and the current
// fee, so the replayed loan always clears.
func (r *Replayer) flash(ctx context.Context, ev model.FlashEventData) error {
	amount0, err := parseAmount(ev.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseAmount(ev.Amount1)
	if err != nil {
		return err
	}
	paid0, err := parseAmount(ev.Paid0)
	if err != nil {
		return err
	}
	paid1, err := parseAmount(ev.Paid1)
	if err != nil {
		return err
	}

	_, _, err = r.session.Pool.Flash(ctx, pool.FlashParams{
		Recipient: common.HexToAddress(ev.Recipient),
		Amount0:   amount0,
		Amount1:   amount1,
		Settle: func(_ context.Context, due0, due1 *big.Int, _ []byte) (pool.Payment, error) {
			return pool.Payment{
				Amount0: maxBig(due0, new(big.Int).Add(amount0, paid0)),
				Amount1: maxBig(due1, new(big.Int).Add(amount1, paid1)),
			}, nil
		},
	})
	return err
}

// payOwed settles exactly what the pool asks for.
func payOwed(_ context.Context, amount0, amount1 *big.Int, _ []byte) (pool.Payment, error) {
	pay := pool.Payment{Amount0: new(big.Int), Amount1: new(big.Int)}
	if amount0.Sign() > 0 {
		pay.Amount0.Set(amount0)
	}
	if amount1.Sign() > 0 {
		pay.Amount1.Set(amount1)
	}
	return pay, nil
}

func clampLimit(target *big.Int) *big.Int {
	lo := new(big.Int).Add(pricemath.MinSqrtRatio, big.NewInt(1))
	hi := new(big.Int).Sub(pricemath.MaxSqrtRatio, big.NewInt(1))
	switch {
	case target.Cmp(lo) < 0:
		return lo
	case target.Cmp(hi) > 0:
		return hi
	default:
		return new(big.Int).Set(target)
	}
}

func decodePayload(rec model.TypedEventRecord, v any) error {
	if len(rec.Decoded) == 0 {
		return fmt.Errorf("%s without payload: %w", rec.EventName, ErrInvalidEvent)
	}
	if err := json.Unmarshal(rec.Decoded, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", rec.EventName, ErrInvalidEvent, err)
	}
	return nil
}

func ownerAndAmount(owner, amount string) (common.Address, *big.Int, error) {
	if !common.IsHexAddress(owner) {
		return common.Address{}, nil, fmt.Errorf("owner %q: %w", owner, ErrInvalidEvent)
	}
	v, err := parseAmount(amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	return common.HexToAddress(owner), v, nil
}

func parseSigned(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q: %w", s, ErrInvalidEvent)
	}
	return v, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, err := parseSigned(s)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q: %w", s, ErrInvalidEvent)
	}
	return v, nil
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
