package model

// DecodeError records a log line that could not be decoded or replayed.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0,omitempty"`
	EventName   string `json:"event_name,omitempty"`
	Error       string `json:"error"`
}
