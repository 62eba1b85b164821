// Package storage persists replay output: JSONL sinks for events, errors and
// window metrics, and durable pool snapshots.
package storage

import (
	"context"
	"errors"

	"adaptivePool/internal/model"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// EventSink receives decoded events as they are replayed.
type EventSink interface {
	PutEventBatch(events []model.TypedEvent) error
}

// ErrorSink receives lines that could not be decoded or applied.
type ErrorSink interface {
	PutDecodeErrors(errs []model.DecodeError) error
}

// MetricsSink receives closed replay windows.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// SnapshotStore keeps the latest snapshot per pool address.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.PoolSnapshot) error
	LoadSnapshot(ctx context.Context, pool string) (model.PoolSnapshot, error)
}
