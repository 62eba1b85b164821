package model

// Pool identifies a replayed pool in durable storage.
type Pool struct {
	ChainID     uint64 `json:"chain_id"`
	Address     string `json:"address"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	TickSpacing int32  `json:"tick_spacing"`
	Plugin      string `json:"plugin"`
}
