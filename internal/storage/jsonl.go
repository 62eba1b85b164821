package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"adaptivePool/internal/model"
)

// JsonlStorage appends records to a JSONL file, one JSON document per line.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

var (
	_ EventSink   = (*JsonlStorage)(nil)
	_ ErrorSink   = (*JsonlStorage)(nil)
	_ MetricsSink = (*JsonlStorage)(nil)
)

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string {
	return s.path
}

func (s *JsonlStorage) PutEventBatch(events []model.TypedEvent) error {
	return appendLines(s, events)
}

func (s *JsonlStorage) PutDecodeErrors(errs []model.DecodeError) error {
	return appendLines(s, errs)
}

// UpsertWindowMetrics appends metrics. A window flushed twice appears twice;
// readers keep the last line per window.
func (s *JsonlStorage) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	return appendLines(s, metrics)
}

func appendLines[T any](s *JsonlStorage, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("write %T: %w", record, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
