package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"adaptivePool/internal/model"
)

// FileSnapshotStore keeps one <pool>.json file per pool under a directory.
// Writes go through a temp file and a rename, so a reader never sees a torn
// snapshot.
type FileSnapshotStore struct {
	dir string
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)

func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

func (s *FileSnapshotStore) path(pool string) string {
	return filepath.Join(s.dir, strings.ToLower(pool)+".json")
}

func (s *FileSnapshotStore) SaveSnapshot(_ context.Context, snap model.PoolSnapshot) error {
	if snap.Pool == "" {
		return fmt.Errorf("snapshot without pool address")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	target := s.path(snap.Pool)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns ErrSnapshotNotFound when the pool has no file yet.
func (s *FileSnapshotStore) LoadSnapshot(_ context.Context, pool string) (model.PoolSnapshot, error) {
	return ReadSnapshotFile(s.path(pool))
}

// ReadSnapshotFile reads a snapshot written by FileSnapshotStore.
func ReadSnapshotFile(path string) (model.PoolSnapshot, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.PoolSnapshot{}, fmt.Errorf("%s: %w", path, ErrSnapshotNotFound)
		}
		return model.PoolSnapshot{}, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return model.PoolSnapshot{}, fmt.Errorf("snapshot path %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.PoolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}
