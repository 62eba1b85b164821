package pool

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"adaptivePool/internal/ledger"
	"adaptivePool/internal/model"
	"adaptivePool/internal/oracle"
)

// Snapshot captures the committed state in its durable form.
func (p *Pool) Snapshot() model.PoolSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := model.PoolSnapshot{
		Pool:        p.cfg.Address.Hex(),
		Token0:      p.cfg.Token0.Hex(),
		Token1:      p.cfg.Token1.Hex(),
		TickSpacing: p.cfg.TickSpacing,
		TakenAt:     time.Now().UTC(),
		Global:      globalRecord(p.state),
	}

	p.ticks.Range(func(tick int32, info *ledger.Tick) bool {
		snap.Ticks = append(snap.Ticks, model.TickRecord{
			Tick:                  tick,
			LiquidityGross:        info.LiquidityGross.String(),
			LiquidityNet:          info.LiquidityNet.String(),
			FeeGrowthOutside0X128: info.FeeGrowthOutside0X128.Dec(),
			FeeGrowthOutside1X128: info.FeeGrowthOutside1X128.Dec(),
		})
		return true
	})
	slices.SortFunc(snap.Ticks, func(a, b model.TickRecord) int { return cmp.Compare(a.Tick, b.Tick) })

	p.positions.Range(func(key ledger.PositionKey, pos *ledger.Position) bool {
		id := key.ID()
		snap.Positions = append(snap.Positions, model.PositionRecord{
			ID:                       hex.EncodeToString(id[:]),
			Owner:                    key.Owner.Hex(),
			TickLower:                key.TickLower,
			TickUpper:                key.TickUpper,
			Liquidity:                pos.Liquidity.String(),
			FeeGrowthInside0LastX128: pos.FeeGrowthInside0LastX128.Dec(),
			FeeGrowthInside1LastX128: pos.FeeGrowthInside1LastX128.Dec(),
			TokensOwed0:              pos.TokensOwed0.String(),
			TokensOwed1:              pos.TokensOwed1.String(),
		})
		return true
	})
	slices.SortFunc(snap.Positions, func(a, b model.PositionRecord) int { return cmp.Compare(a.ID, b.ID) })

	for i := 0; i < oracle.Capacity; i++ {
		tp := p.timepoints.At(uint16(i))
		if !tp.Initialized {
			continue
		}
		snap.Timepoints = append(snap.Timepoints, model.TimepointRecord{
			Index:                uint16(i),
			BlockTimestamp:       tp.BlockTimestamp,
			TickCumulative:       tp.TickCumulative,
			VolatilityCumulative: tp.VolatilityCumulative.Dec(),
			Tick:                 tp.Tick,
		})
	}
	return snap
}

func globalRecord(s GlobalState) model.GlobalStateRecord {
	rec := model.GlobalStateRecord{
		Tick:                 s.Tick,
		Fee:                  s.Fee,
		TimepointIndex:       s.TimepointIndex,
		PluginConfig:         uint8(s.PluginConfig),
		Liquidity:            s.Liquidity.String(),
		FeeGrowthGlobal0X128: s.FeeGrowthGlobal0X128.Dec(),
		FeeGrowthGlobal1X128: s.FeeGrowthGlobal1X128.Dec(),
		Balance0:             s.Balance0.String(),
		Balance1:             s.Balance1.String(),
	}
	if s.SqrtPriceX96 != nil {
		rec.SqrtPriceX96 = s.SqrtPriceX96.String()
	}
	return rec
}

// Restore loads a snapshot into a pool that has not been initialized. The
// tick bitmap is rebuilt from the tick records.
func (p *Pool) Restore(snap model.PoolSnapshot) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if p.state.Initialized() {
		return fmt.Errorf("restore: %w", ErrAlreadyInitialized)
	}
	if snap.TickSpacing != p.cfg.TickSpacing {
		return fmt.Errorf("restore: snapshot tick spacing %d, pool %d", snap.TickSpacing, p.cfg.TickSpacing)
	}

	tx := p.begin()
	if tx.state, err = parseGlobal(snap.Global); err != nil {
		return fmt.Errorf("restore global state: %w", err)
	}

	for _, rec := range snap.Ticks {
		info, err := parseTick(rec)
		if err != nil {
			return fmt.Errorf("restore tick %d: %w", rec.Tick, err)
		}
		tx.ticks.Put(rec.Tick, info)
		if err := tx.bitmap.Flip(rec.Tick, p.cfg.TickSpacing); err != nil {
			return fmt.Errorf("restore tick %d: %w", rec.Tick, err)
		}
	}

	for _, rec := range snap.Positions {
		key, pos, err := parsePosition(rec)
		if err != nil {
			return fmt.Errorf("restore position %s: %w", rec.ID, err)
		}
		tx.positions.Put(key, pos)
	}

	for _, rec := range snap.Timepoints {
		vol, err := uint256.FromDecimal(rec.VolatilityCumulative)
		if err != nil {
			return fmt.Errorf("restore timepoint %d: %w", rec.Index, err)
		}
		tx.timepoints.Restore(rec.Index, oracle.Timepoint{
			Initialized:          true,
			BlockTimestamp:       rec.BlockTimestamp,
			TickCumulative:       rec.TickCumulative,
			VolatilityCumulative: *vol,
			Tick:                 rec.Tick,
		})
	}

	p.commit(tx)
	return nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func parseU256(s string) (uint256.Int, error) {
	if s == "" {
		return uint256.Int{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("invalid uint256 %q: %w", s, err)
	}
	return *v, nil
}

func parseGlobal(rec model.GlobalStateRecord) (GlobalState, error) {
	st := GlobalState{
		Tick:           rec.Tick,
		Fee:            rec.Fee,
		TimepointIndex: rec.TimepointIndex,
		PluginConfig:   HookFlags(rec.PluginConfig),
	}
	var err error
	if rec.SqrtPriceX96 != "" {
		if st.SqrtPriceX96, err = parseBig(rec.SqrtPriceX96); err != nil {
			return st, err
		}
	}
	if st.Liquidity, err = parseBig(rec.Liquidity); err != nil {
		return st, err
	}
	if st.Balance0, err = parseBig(rec.Balance0); err != nil {
		return st, err
	}
	if st.Balance1, err = parseBig(rec.Balance1); err != nil {
		return st, err
	}
	if st.FeeGrowthGlobal0X128, err = parseU256(rec.FeeGrowthGlobal0X128); err != nil {
		return st, err
	}
	if st.FeeGrowthGlobal1X128, err = parseU256(rec.FeeGrowthGlobal1X128); err != nil {
		return st, err
	}
	return st, nil
}

func parseTick(rec model.TickRecord) (*ledger.Tick, error) {
	info := &ledger.Tick{Initialized: true}
	var err error
	if info.LiquidityGross, err = parseBig(rec.LiquidityGross); err != nil {
		return nil, err
	}
	if info.LiquidityNet, err = parseBig(rec.LiquidityNet); err != nil {
		return nil, err
	}
	if info.FeeGrowthOutside0X128, err = parseU256(rec.FeeGrowthOutside0X128); err != nil {
		return nil, err
	}
	if info.FeeGrowthOutside1X128, err = parseU256(rec.FeeGrowthOutside1X128); err != nil {
		return nil, err
	}
	return info, nil
}

func parsePosition(rec model.PositionRecord) (ledger.PositionKey, *ledger.Position, error) {
	if !common.IsHexAddress(rec.Owner) {
		return ledger.PositionKey{}, nil, fmt.Errorf("invalid owner %q", rec.Owner)
	}
	key := ledger.PositionKey{Owner: common.HexToAddress(rec.Owner), TickLower: rec.TickLower, TickUpper: rec.TickUpper}
	pos := &ledger.Position{}
	var err error
	if pos.Liquidity, err = parseBig(rec.Liquidity); err != nil {
		return key, nil, err
	}
	if pos.TokensOwed0, err = parseBig(rec.TokensOwed0); err != nil {
		return key, nil, err
	}
	if pos.TokensOwed1, err = parseBig(rec.TokensOwed1); err != nil {
		return key, nil, err
	}
	if pos.FeeGrowthInside0LastX128, err = parseU256(rec.FeeGrowthInside0LastX128); err != nil {
		return key, nil, err
	}
	if pos.FeeGrowthInside1LastX128, err = parseU256(rec.FeeGrowthInside1LastX128); err != nil {
		return key, nil, err
	}
	return key, pos, nil
}
