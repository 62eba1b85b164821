// Package replay drives an adaptive pool with a recorded stream of pool
// events and summarizes the result per time window.
package replay

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"adaptivePool/internal/fee"
	"adaptivePool/internal/model"
	"adaptivePool/internal/plugin"
	"adaptivePool/internal/pool"
)

// PoolSettings describes the pool a session replays into.
type PoolSettings struct {
	ChainID          uint64
	Address          common.Address
	Owner            common.Address
	Plugin           common.Address
	FeeManager       common.Address
	IncentiveManager common.Address
	Token0           common.Address
	Token1           common.Address
	TickSpacing      int32
	OracleWindow     uint32
	Fee              fee.Configuration
}

// Session is a pool with its adaptive-fee plugin attached, running on a
// clock that follows event timestamps.
type Session struct {
	Pool     *pool.Pool
	Plugin   *plugin.Plugin
	Clock    *pool.ManualClock
	settings PoolSettings
	logger   *zap.Logger
}

func NewSession(settings PoolSettings, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := pool.NewManualClock(0)

	p, err := pool.New(pool.Config{
		Address:      settings.Address,
		Owner:        settings.Owner,
		Token0:       settings.Token0,
		Token1:       settings.Token1,
		TickSpacing:  settings.TickSpacing,
		Fee:          settings.Fee.BaseFee,
		OracleWindow: settings.OracleWindow,
		Clock:        clock,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pl, err := plugin.New(plugin.Config{
		Address:          settings.Plugin,
		FeeManager:       settings.FeeManager,
		IncentiveManager: settings.IncentiveManager,
		Fee:              settings.Fee,
	}, p, logger)
	if err != nil {
		return nil, fmt.Errorf("create plugin: %w", err)
	}
	if err := p.AttachHooks(settings.Owner, pl, plugin.DefaultHookFlags); err != nil {
		return nil, fmt.Errorf("attach plugin: %w", err)
	}

	return &Session{Pool: p, Plugin: pl, Clock: clock, settings: settings, logger: logger}, nil
}

func (s *Session) Settings() PoolSettings {
	return s.settings
}

// PoolRecord is the registration row for the session's pool.
func (s *Session) PoolRecord() model.Pool {
	return model.Pool{
		ChainID:     s.settings.ChainID,
		Address:     s.settings.Address.Hex(),
		Token0:      s.settings.Token0.Hex(),
		Token1:      s.settings.Token1.Hex(),
		TickSpacing: s.settings.TickSpacing,
		Plugin:      s.settings.Plugin.Hex(),
	}
}

// Snapshot captures the pool, the fee curve in force and the replay cursor.
func (s *Session) Snapshot(cursor *model.ReplayCursor) model.PoolSnapshot {
	snap := s.Pool.Snapshot()
	rec := FeeRecord(s.Plugin.FeeConfiguration())
	snap.Fee = &rec
	if cursor != nil {
		c := *cursor
		snap.Cursor = &c
	}
	return snap
}

// Restore loads snap into the session's fresh pool. The snapshot's fee curve
// replaces the configured one and the clock resumes at the latest recorded
// time.
func (s *Session) Restore(snap model.PoolSnapshot) error {
	if !strings.EqualFold(snap.Pool, s.settings.Address.Hex()) {
		return fmt.Errorf("snapshot of pool %s cannot restore %s", snap.Pool, s.settings.Address.Hex())
	}
	if snap.Fee != nil {
		cfg := FeeConfiguration(*snap.Fee)
		if cfg != s.settings.Fee {
			s.logger.Warn("snapshot fee configuration differs from configured, keeping snapshot's",
				zap.Uint16("alpha1", cfg.Alpha1),
				zap.Uint16("alpha2", cfg.Alpha2),
				zap.Uint16("base_fee", cfg.BaseFee))
		}
		if err := s.Plugin.SetFeeConfiguration(s.settings.FeeManager, cfg); err != nil {
			return fmt.Errorf("restore fee configuration: %w", err)
		}
	}

	var now uint32
	for _, tp := range snap.Timepoints {
		if tp.BlockTimestamp > now {
			now = tp.BlockTimestamp
		}
	}
	if snap.Cursor != nil && uint32(snap.Cursor.Timestamp) > now {
		now = uint32(snap.Cursor.Timestamp)
	}
	s.Clock.Set(now)

	return s.Pool.Restore(snap)
}

func FeeRecord(cfg fee.Configuration) model.FeeConfigRecord {
	return model.FeeConfigRecord{
		Alpha1:  cfg.Alpha1,
		Alpha2:  cfg.Alpha2,
		Beta1:   cfg.Beta1,
		Beta2:   cfg.Beta2,
		Gamma1:  cfg.Gamma1,
		Gamma2:  cfg.Gamma2,
		BaseFee: cfg.BaseFee,
	}
}

func FeeConfiguration(rec model.FeeConfigRecord) fee.Configuration {
	return fee.Configuration{
		Alpha1:  rec.Alpha1,
		Alpha2:  rec.Alpha2,
		Beta1:   rec.Beta1,
		Beta2:   rec.Beta2,
		Gamma1:  rec.Gamma1,
		Gamma2:  rec.Gamma2,
		BaseFee: rec.BaseFee,
	}
}
