package model

import "time"

// PoolSnapshot is the durable state of one adaptive pool. Large integers are
// decimal strings.
type PoolSnapshot struct {
	Pool        string            `json:"pool"`
	Token0      string            `json:"token0"`
	Token1      string            `json:"token1"`
	TickSpacing int32             `json:"tick_spacing"`
	TakenAt     time.Time         `json:"taken_at"`
	Global      GlobalStateRecord `json:"global"`
	Ticks       []TickRecord      `json:"ticks"`
	Positions   []PositionRecord  `json:"positions"`
	Timepoints  []TimepointRecord `json:"timepoints"`
	Fee         *FeeConfigRecord  `json:"fee_config,omitempty"`
	Cursor      *ReplayCursor     `json:"cursor,omitempty"`
}

// ReplayCursor is the last event applied before a snapshot was taken.
type ReplayCursor struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Timestamp   uint64 `json:"timestamp"`
}

// After reports whether the event at (block, logIndex) comes after c.
func (c *ReplayCursor) After(block, logIndex uint64) bool {
	if c == nil {
		return true
	}
	if block != c.BlockNumber {
		return block > c.BlockNumber
	}
	return logIndex > c.LogIndex
}

// GlobalStateRecord mirrors the pool's global state.
type GlobalStateRecord struct {
	SqrtPriceX96         string `json:"sqrt_price_x96"`
	Tick                 int32  `json:"tick"`
	Fee                  uint16 `json:"fee"`
	TimepointIndex       uint16 `json:"timepoint_index"`
	PluginConfig         uint8  `json:"plugin_config"`
	Liquidity            string `json:"liquidity"`
	FeeGrowthGlobal0X128 string `json:"fee_growth_global0_x128"`
	FeeGrowthGlobal1X128 string `json:"fee_growth_global1_x128"`
	Balance0             string `json:"balance0"`
	Balance1             string `json:"balance1"`
}

// TickRecord is one initialized tick.
type TickRecord struct {
	Tick                  int32  `json:"tick"`
	LiquidityGross        string `json:"liquidity_gross"`
	LiquidityNet          string `json:"liquidity_net"`
	FeeGrowthOutside0X128 string `json:"fee_growth_outside0_x128"`
	FeeGrowthOutside1X128 string `json:"fee_growth_outside1_x128"`
}

// PositionRecord is one position. ID is the hex position identifier.
type PositionRecord struct {
	ID                       string `json:"id"`
	Owner                    string `json:"owner"`
	TickLower                int32  `json:"tick_lower"`
	TickUpper                int32  `json:"tick_upper"`
	Liquidity                string `json:"liquidity"`
	FeeGrowthInside0LastX128 string `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 string `json:"fee_growth_inside1_last_x128"`
	TokensOwed0              string `json:"tokens_owed0"`
	TokensOwed1              string `json:"tokens_owed1"`
}

// TimepointRecord is one written oracle slot.
type TimepointRecord struct {
	Index                uint16 `json:"index"`
	BlockTimestamp       uint32 `json:"block_timestamp"`
	TickCumulative       int64  `json:"tick_cumulative"`
	VolatilityCumulative string `json:"volatility_cumulative"`
	Tick                 int32  `json:"tick"`
}

// FeeConfigRecord is the adaptive fee configuration in effect when the
// snapshot was taken.
type FeeConfigRecord struct {
	Alpha1  uint16 `json:"alpha1"`
	Alpha2  uint16 `json:"alpha2"`
	Beta1   uint32 `json:"beta1"`
	Beta2   uint32 `json:"beta2"`
	Gamma1  uint16 `json:"gamma1"`
	Gamma2  uint16 `json:"gamma2"`
	BaseFee uint16 `json:"base_fee"`
}
