// Package plugin implements the adaptive-fee hooks of a pool: it records a
// timepoint on the first swap or position change of every block timestamp,
// recomputes the fee from the trailing average volatility, and forwards tick
// crossings to an attached incentive.
package plugin

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"adaptivePool/internal/fee"
	"adaptivePool/internal/pool"
)

var (
	ErrIncentiveAlreadyActive = errors.New("incentive already active")
	ErrIncentiveNotChanged    = errors.New("incentive not changed")
)

// DefaultHookFlags are the hooks the plugin needs without an incentive.
const DefaultHookFlags = pool.HookBeforeSwap | pool.HookAfterInitialize | pool.HookAfterModifyPosition | pool.HookDynamicFee

// Incentive is an external consumer of tick movements.
type Incentive interface {
	Address() common.Address
	CrossTo(tick int32, zeroForOne bool) error
}

// PoolConfigurer is the part of a pool the plugin manages.
type PoolConfigurer interface {
	Address() common.Address
	PluginConfig() pool.HookFlags
	SetPluginConfig(caller common.Address, flags pool.HookFlags) error
}

type Config struct {
	Address          common.Address
	FeeManager       common.Address
	IncentiveManager common.Address
	Fee              fee.Configuration
}

// Plugin is bound to exactly one pool.
type Plugin struct {
	cfg    Config
	pool   PoolConfigurer
	logger *zap.Logger

	mu        sync.RWMutex
	feeConfig fee.Configuration
	incentive Incentive
}

var _ pool.Hooks = (*Plugin)(nil)

func New(cfg Config, p PoolConfigurer, logger *zap.Logger) (*Plugin, error) {
	if err := cfg.Fee.Validate(); err != nil {
		return nil, fmt.Errorf("fee configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		cfg:       cfg,
		pool:      p,
		logger:    logger.With(zap.String("plugin", cfg.Address.Hex())),
		feeConfig: cfg.Fee,
	}, nil
}

func (p *Plugin) Address() common.Address {
	return p.cfg.Address
}

func (p *Plugin) FeeConfiguration() fee.Configuration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feeConfig
}

// SetFeeConfiguration replaces the fee curve. It applies from the next
// timepoint write.
func (p *Plugin) SetFeeConfiguration(caller common.Address, cfg fee.Configuration) error {
	if caller != p.cfg.FeeManager {
		return fmt.Errorf("set fee configuration: %w", pool.ErrUnauthorized)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.feeConfig = cfg
	p.mu.Unlock()
	p.logger.Info("fee configuration changed",
		zap.Uint16("alpha1", cfg.Alpha1),
		zap.Uint16("alpha2", cfg.Alpha2),
		zap.Uint16("base_fee", cfg.BaseFee))
	return nil
}

func (p *Plugin) Incentive() Incentive {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.incentive
}

// SetIncentive attaches inc, or detaches the current incentive when inc is
// nil. An active incentive must be detached before another is attached.
func (p *Plugin) SetIncentive(caller common.Address, inc Incentive) error {
	if caller != p.cfg.IncentiveManager {
		return fmt.Errorf("set incentive: %w", pool.ErrUnauthorized)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.incentive
	if incentiveAddress(cur) == incentiveAddress(inc) {
		return ErrIncentiveNotChanged
	}
	if inc != nil && cur != nil {
		return ErrIncentiveAlreadyActive
	}

	flags := p.pool.PluginConfig()
	if inc != nil {
		flags |= pool.HookAfterSwap
	} else {
		flags &^= pool.HookAfterSwap
	}
	if err := p.pool.SetPluginConfig(p.cfg.Address, flags); err != nil {
		return fmt.Errorf("set incentive: %w", err)
	}
	p.incentive = inc
	return nil
}

func incentiveAddress(inc Incentive) common.Address {
	if inc == nil {
		return common.Address{}
	}
	return inc.Address()
}

func (p *Plugin) authorize(caller common.Address) error {
	if caller != p.pool.Address() {
		return pool.ErrUnauthorized
	}
	return nil
}

func (p *Plugin) BeforeInitialize(caller common.Address, _ *pool.HookState, _ *big.Int) error {
	return p.authorize(caller)
}

// AfterInitialize seeds the oracle and sets the resting fee.
func (p *Plugin) AfterInitialize(caller common.Address, st *pool.HookState, _ *big.Int, tick int32) error {
	if err := p.authorize(caller); err != nil {
		return err
	}
	if err := st.Timepoints().Initialize(st.BlockTimestamp(), tick); err != nil {
		return err
	}
	st.SetTimepointIndex(0)
	st.SetFee(fee.Fee(0, p.FeeConfiguration()))
	return nil
}

func (p *Plugin) BeforeSwap(caller common.Address, st *pool.HookState, _ pool.SwapParams) error {
	if err := p.authorize(caller); err != nil {
		return err
	}
	return p.writeTimepoint(st)
}

func (p *Plugin) AfterSwap(caller common.Address, st *pool.HookState, params pool.SwapParams, _, _ *big.Int) error {
	if err := p.authorize(caller); err != nil {
		return err
	}
	inc := p.Incentive()
	if inc == nil {
		return nil
	}
	if err := inc.CrossTo(st.Tick(), params.ZeroForOne); err != nil {
		return fmt.Errorf("incentive %s: %w", inc.Address().Hex(), err)
	}
	return nil
}

func (p *Plugin) BeforeModifyPosition(caller common.Address, _ *pool.HookState, _ pool.ModifyPositionParams) error {
	return p.authorize(caller)
}

func (p *Plugin) AfterModifyPosition(caller common.Address, st *pool.HookState, _ pool.ModifyPositionParams, _, _ *big.Int) error {
	if err := p.authorize(caller); err != nil {
		return err
	}
	return p.writeTimepoint(st)
}

// writeTimepoint records the current tick once per timestamp and refreshes
// the fee from the new average volatility.
func (p *Plugin) writeTimepoint(st *pool.HookState) error {
	buf := st.Timepoints()
	now := st.BlockTimestamp()
	last := st.TimepointIndex()
	if buf.At(last).BlockTimestamp == now {
		return nil
	}

	idx, oldest := buf.Write(last, now, st.Tick())
	st.SetTimepointIndex(idx)

	vol, err := buf.AverageVolatility(now, st.Tick(), idx, oldest)
	if err != nil {
		return fmt.Errorf("average volatility: %w", err)
	}
	next := fee.Fee(vol, p.FeeConfiguration())
	if next != st.Fee() {
		p.logger.Debug("adaptive fee updated",
			zap.Uint64("volatility", vol),
			zap.Uint16("from", st.Fee()),
			zap.Uint16("to", next))
		st.SetFee(next)
	}
	return nil
}
