package model

import "time"

// PoolWindowMetrics summarizes the swaps replayed within one window.
// Token amounts are raw integers; fee figures are in pips.
type PoolWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PoolAddress    string    `json:"pool_address"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	Fee0           string    `json:"fee0"`
	Fee1           string    `json:"fee1"`
	MinFee         uint16    `json:"min_fee"`
	MaxFee         uint16    `json:"max_fee"`
	AvgFee         string    `json:"avg_fee"`
	CloseFee       uint16    `json:"close_fee"`
	CloseTick      int32     `json:"close_tick"`
	Volatility     uint64    `json:"volatility"`
}
