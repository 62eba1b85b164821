package dex

import (
	"errors"

	"adaptivePool/internal/model"
)

var (
	ErrUnsupportedTopic = errors.New("unsupported topic0")
	ErrMalformedLog     = errors.New("malformed log")
)

// Decoder turns raw logs into typed events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}
