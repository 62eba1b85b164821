package model

import "encoding/json"

// TypedEvent is a decoded pool event. Decoded holds one of the *EventData
// structs.
type TypedEvent struct {
	ChainID     uint64     `json:"chain_id"`
	BlockNumber uint64     `json:"block_number"`
	TxHash      string     `json:"tx_hash"`
	LogIndex    uint64     `json:"log_index"`
	Address     string     `json:"address"`
	EventName   string     `json:"event_name"`
	Timestamp   uint64     `json:"timestamp"`
	Decoded     any        `json:"decoded"`
	Raw         *RawLogRef `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// TypedEventRecord is a TypedEvent read back from JSON, with the payload left
// undecoded until the event name is known.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
}

// Record converts the event into its read-back form.
func (e TypedEvent) Record() (TypedEventRecord, error) {
	payload, err := json.Marshal(e.Decoded)
	if err != nil {
		return TypedEventRecord{}, err
	}
	return TypedEventRecord{
		ChainID:     e.ChainID,
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
		Address:     e.Address,
		EventName:   e.EventName,
		Timestamp:   e.Timestamp,
		Decoded:     payload,
	}, nil
}
