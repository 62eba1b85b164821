package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adaptivePool/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "errors.jsonl")
	sink := NewJsonlStorage(path)

	require.NoError(t, sink.PutDecodeErrors(nil))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "empty batch creates nothing")

	require.NoError(t, sink.PutDecodeErrors([]model.DecodeError{{BlockNumber: 1, Error: "boom"}}))
	require.NoError(t, sink.PutDecodeErrors([]model.DecodeError{{BlockNumber: 2, Error: "bang"}, {BlockNumber: 3}}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var blocks []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.DecodeError
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		blocks = append(blocks, rec.BlockNumber)
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, []uint64{1, 2, 3}, blocks)
}

func TestJsonlStorageWindowMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	sink := NewJsonlStorage(path)
	start := time.Unix(1_700_000_100, 0).UTC()

	err := sink.UpsertWindowMetrics(context.Background(), []model.PoolWindowMetrics{{
		PoolAddress:    "0xabc",
		WindowSizeSecs: 300,
		WindowStart:    start,
		WindowEnd:      start.Add(5 * time.Minute),
		SwapCount:      4,
		AvgFee:         "1550.5",
	}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got model.PoolWindowMetrics
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, uint64(4), got.SwapCount)
	require.True(t, got.WindowStart.Equal(start))
}

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "snapshots"))

	_, err := store.LoadSnapshot(ctx, "0xAbC")
	require.True(t, errors.Is(err, ErrSnapshotNotFound))

	snap := model.PoolSnapshot{
		Pool:        "0xAbC",
		TickSpacing: 60,
		Global:      model.GlobalStateRecord{SqrtPriceX96: "79228162514264337593543950336", Fee: 100},
		Ticks:       []model.TickRecord{{Tick: -60, LiquidityGross: "10", LiquidityNet: "10"}},
		Cursor:      &model.ReplayCursor{BlockNumber: 7, LogIndex: 3, Timestamp: 1_700_000_000},
	}
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	snap.Global.Fee = 250
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	got, err := store.LoadSnapshot(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, uint16(250), got.Global.Fee)
	require.Equal(t, snap.Ticks, got.Ticks)
	require.Equal(t, *snap.Cursor, *got.Cursor)

	_, err = os.Stat(store.path("0xabc") + ".tmp")
	require.True(t, os.IsNotExist(err))

	require.Error(t, store.SaveSnapshot(ctx, model.PoolSnapshot{}))
}
