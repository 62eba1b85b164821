// Package pool is the concentrated-liquidity engine: global state, the
// swap-stepping loop, position changes, and the hook calls that let a plugin
// maintain the oracle and the adaptive fee.
//
// Every mutating entry point takes the pool lock, works against staged copies
// of the ledgers, the tick bitmap, the oracle ring and the global state, and
// commits them only when the whole call succeeds.
package pool

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"adaptivePool/internal/ledger"
	"adaptivePool/internal/oracle"
	"adaptivePool/internal/pricemath"
	"adaptivePool/internal/tickbitmap"
)

// Config describes a pool.
type Config struct {
	Address      common.Address
	Owner        common.Address
	Token0       common.Address
	Token1       common.Address
	TickSpacing  int32
	Fee          uint16
	OracleWindow uint32
	Clock        Clock
}

// Pool is a single adaptive-fee pool.
type Pool struct {
	cfg          Config
	logger       *zap.Logger
	maxLiquidity *big.Int

	// guard serializes mutating calls; unlocked is false while one runs.
	guard    sync.Mutex
	unlocked bool

	// mu protects committed state against concurrent readers.
	mu         sync.RWMutex
	state      GlobalState
	ticks      *ledger.Ticks
	bitmap     *tickbitmap.Bitmap
	positions  *ledger.Positions
	timepoints *oracle.Buffer
	hooks      Hooks
}

func New(cfg Config, logger *zap.Logger) (*Pool, error) {
	if cfg.TickSpacing <= 0 {
		return nil, ErrInvalidTickSpacing
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		cfg:          cfg,
		logger:       logger.With(zap.String("pool", cfg.Address.Hex())),
		maxLiquidity: ledger.MaxLiquidityPerTick(cfg.TickSpacing),
		unlocked:     true,
		state:        newGlobalState(cfg.Fee),
		ticks:        ledger.NewTicks(),
		bitmap:       tickbitmap.New(),
		positions:    ledger.NewPositions(),
		timepoints:   oracle.NewBuffer(cfg.OracleWindow),
	}, nil
}

func (p *Pool) Address() common.Address {
	return p.cfg.Address
}

func (p *Pool) Config() Config {
	return p.cfg
}

// lock acquires the reentrancy guard. The returned func releases it and must
// run on every exit path.
func (p *Pool) lock() (func(), error) {
	p.guard.Lock()
	defer p.guard.Unlock()
	if !p.unlocked {
		return nil, ErrLocked
	}
	p.unlocked = false
	return func() {
		p.guard.Lock()
		p.unlocked = true
		p.guard.Unlock()
	}, nil
}

// txn is the staged state of one mutating call.
type txn struct {
	state      GlobalState
	ticks      *ledger.Ticks
	bitmap     *tickbitmap.Bitmap
	positions  *ledger.Positions
	timepoints *oracle.Buffer
}

// begin stages the committed state. Only the lock holder commits, so reading
// committed state here needs no read lock.
func (p *Pool) begin() *txn {
	return &txn{
		state:      p.state.Clone(),
		ticks:      p.ticks.Stage(),
		bitmap:     p.bitmap.Stage(),
		positions:  p.positions.Stage(),
		timepoints: p.timepoints.Stage(),
	}
}

func (p *Pool) commit(tx *txn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx.ticks.Commit()
	tx.bitmap.Commit()
	tx.positions.Commit()
	tx.timepoints.Commit()
	p.state = tx.state
}

func (p *Pool) hookState(tx *txn) *HookState {
	return &HookState{tx: tx, now: p.cfg.Clock.Now()}
}

// callHook runs fn if a plugin is attached and flag is enabled for this call.
func (p *Pool) callHook(tx *txn, flag HookFlags, fn func(h Hooks, st *HookState) error) error {
	if p.hooks == nil || !tx.state.PluginConfig.Has(flag) {
		return nil
	}
	return fn(p.hooks, p.hookState(tx))
}

// AttachHooks installs the plugin. Only the owner may attach one, and only
// before the pool is initialized.
func (p *Pool) AttachHooks(caller common.Address, hooks Hooks, flags HookFlags) error {
	if caller != p.cfg.Owner {
		return fmt.Errorf("attach hooks: %w", ErrUnauthorized)
	}
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if p.state.Initialized() {
		return fmt.Errorf("attach hooks: %w", ErrAlreadyInitialized)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = hooks
	p.state.PluginConfig = flags
	return nil
}

// PluginConfig returns the committed hook flags.
func (p *Pool) PluginConfig() HookFlags {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.PluginConfig
}

// SetPluginConfig replaces the hook flags. Only the attached plugin may call it.
func (p *Pool) SetPluginConfig(caller common.Address, flags HookFlags) error {
	if p.hooks == nil || caller != p.hooks.Address() {
		return fmt.Errorf("set plugin config: %w", ErrUnauthorized)
	}
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.PluginConfig = flags
	p.logger.Debug("plugin config changed", zap.Uint8("flags", uint8(flags)))
	return nil
}

// Initialize sets the starting price. It runs the initialize hooks, which seed
// the oracle.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if p.state.Initialized() {
		return ErrAlreadyInitialized
	}
	tick, err := pricemath.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	tx := p.begin()
	err = p.callHook(tx, HookBeforeInitialize, func(h Hooks, st *HookState) error {
		return h.BeforeInitialize(p.cfg.Address, st, sqrtPriceX96)
	})
	if err != nil {
		return fmt.Errorf("before initialize hook: %w", err)
	}

	tx.state.SqrtPriceX96 = new(big.Int).Set(sqrtPriceX96)
	tx.state.Tick = tick

	err = p.callHook(tx, HookAfterInitialize, func(h Hooks, st *HookState) error {
		return h.AfterInitialize(p.cfg.Address, st, sqrtPriceX96, tick)
	})
	if err != nil {
		return fmt.Errorf("after initialize hook: %w", err)
	}

	p.commit(tx)
	p.logger.Info("pool initialized", zap.Int32("tick", tick), zap.Uint16("fee", tx.state.Fee))
	return nil
}

// State returns a copy of the committed global state.
func (p *Pool) State() GlobalState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Tick returns a copy of the committed record for tick, or nil.
func (p *Pool) Tick(tick int32) *ledger.Tick {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info := p.ticks.Get(tick)
	if info == nil {
		return nil
	}
	return info.Clone()
}

// TickInitialized reports whether tick is set in the bitmap.
func (p *Pool) TickInitialized(tick int32) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bitmap.IsInitialized(tick, p.cfg.TickSpacing)
}

// Position returns a copy of the committed position, or nil.
func (p *Pool) Position(key ledger.PositionKey) *ledger.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos := p.positions.Get(key)
	if pos == nil {
		return nil
	}
	return pos.Clone()
}

// FeeGrowthInside returns the current per-liquidity fee growth inside a range.
func (p *Pool) FeeGrowthInside(tickLower, tickUpper int32) (uint256.Int, uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticks.FeeGrowthInside(tickLower, tickUpper, p.state.Tick, &p.state.FeeGrowthGlobal0X128, &p.state.FeeGrowthGlobal1X128)
}

// Observe returns cumulative tick and volatility for each secondsAgo, read
// from committed state only.
func (p *Pool) Observe(secondsAgos []uint32) ([]int64, []*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.state.Initialized() {
		return nil, nil, ErrNotInitialized
	}

	idx := p.state.TimepointIndex
	ticks, vols, err := p.timepoints.Observe(p.cfg.Clock.Now(), secondsAgos, p.state.Tick, idx, p.timepoints.OldestIndex(idx))
	if err != nil {
		return nil, nil, fmt.Errorf("observe: %w", err)
	}
	out := make([]*big.Int, len(vols))
	for i := range vols {
		out[i] = vols[i].ToBig()
	}
	return ticks, out, nil
}

// AverageVolatility returns the oracle's trailing average volatility as of now.
func (p *Pool) AverageVolatility() (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.state.Initialized() {
		return 0, ErrNotInitialized
	}
	idx := p.state.TimepointIndex
	return p.timepoints.AverageVolatility(p.cfg.Clock.Now(), p.state.Tick, idx, p.timepoints.OldestIndex(idx))
}
