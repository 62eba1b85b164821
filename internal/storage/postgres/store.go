// Package postgres stores pool registrations, replay window metrics and pool
// snapshots in Postgres through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"adaptivePool/internal/model"
	"adaptivePool/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id      BIGINT NOT NULL,
	pool_address  TEXT   NOT NULL,
	token0        TEXT   NOT NULL,
	token1        TEXT   NOT NULL,
	tick_spacing  INT    NOT NULL,
	plugin        TEXT   NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);
CREATE TABLE IF NOT EXISTS pool_window_metrics (
	chain_id            BIGINT      NOT NULL,
	pool_address        TEXT        NOT NULL,
	window_size_seconds BIGINT      NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT      NOT NULL,
	volume0             NUMERIC     NOT NULL,
	volume1             NUMERIC     NOT NULL,
	fee0                NUMERIC     NOT NULL,
	fee1                NUMERIC     NOT NULL,
	min_fee             INT         NOT NULL,
	max_fee             INT         NOT NULL,
	avg_fee             NUMERIC     NOT NULL,
	close_fee           INT         NOT NULL,
	close_tick          INT         NOT NULL,
	volatility          NUMERIC     NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS pool_snapshots (
	pool_address TEXT        PRIMARY KEY,
	cursor_block BIGINT,
	snapshot     JSONB       NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Options tunes write retries.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Store provides Postgres persistence for replay output.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

var (
	_ storage.MetricsSink   = (*Store)(nil)
	_ storage.SnapshotStore = (*Store)(nil)
)

func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, opts: opts}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.retry(ctx, "ensure schema", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, schema)
		return err
	})
}

func (s *Store) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	err := withRetry(ctx, s.opts.MaxRetries, s.opts.RetryBackoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil {
			s.opts.Logger.Warn("postgres write failed", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// sendBatch runs a batch and checks every queued statement.
func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPools inserts or updates pool registrations.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	return s.retry(ctx, "upsert pools", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, pool := range pools {
			batch.Queue(`
				INSERT INTO pools (chain_id, pool_address, token0, token1, tick_spacing, plugin, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
				ON CONFLICT (chain_id, pool_address)
				DO UPDATE SET
					token0 = EXCLUDED.token0,
					token1 = EXCLUDED.token1,
					tick_spacing = EXCLUDED.tick_spacing,
					plugin = EXCLUDED.plugin,
					updated_at = now()
			`,
				int64(pool.ChainID),
				strings.ToLower(pool.Address),
				pool.Token0,
				pool.Token1,
				pool.TickSpacing,
				pool.Plugin,
			)
		}
		return s.sendBatch(ctx, batch)
	})
}

// UpsertWindowMetrics inserts or updates window metrics. A window replayed
// again overwrites the earlier row.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.retry(ctx, "upsert window metrics", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, m := range metrics {
			batch.Queue(`
				INSERT INTO pool_window_metrics (
					chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
					swap_count, volume0, volume1, fee0, fee1, min_fee, max_fee, avg_fee,
					close_fee, close_tick, volatility, created_at, updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
				ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
				DO UPDATE SET
					window_end_ts = EXCLUDED.window_end_ts,
					swap_count = EXCLUDED.swap_count,
					volume0 = EXCLUDED.volume0,
					volume1 = EXCLUDED.volume1,
					fee0 = EXCLUDED.fee0,
					fee1 = EXCLUDED.fee1,
					min_fee = EXCLUDED.min_fee,
					max_fee = EXCLUDED.max_fee,
					avg_fee = EXCLUDED.avg_fee,
					close_fee = EXCLUDED.close_fee,
					close_tick = EXCLUDED.close_tick,
					volatility = EXCLUDED.volatility,
					updated_at = now()
			`,
				int64(m.ChainID),
				strings.ToLower(m.PoolAddress),
				m.WindowSizeSecs,
				m.WindowStart,
				m.WindowEnd,
				int64(m.SwapCount),
				m.Volume0,
				m.Volume1,
				m.Fee0,
				m.Fee1,
				int32(m.MinFee),
				int32(m.MaxFee),
				m.AvgFee,
				int32(m.CloseFee),
				m.CloseTick,
				fmt.Sprint(m.Volatility),
			)
		}
		return s.sendBatch(ctx, batch)
	})
}

// SaveSnapshot replaces the stored snapshot of snap.Pool.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.PoolSnapshot) error {
	if snap.Pool == "" {
		return fmt.Errorf("snapshot without pool address")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	var cursorBlock *int64
	if snap.Cursor != nil {
		b := int64(snap.Cursor.BlockNumber)
		cursorBlock = &b
	}

	return s.retry(ctx, "save snapshot", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO pool_snapshots (pool_address, cursor_block, snapshot, updated_at)
			VALUES ($1, $2, $3::jsonb, now())
			ON CONFLICT (pool_address) DO UPDATE
			SET cursor_block = EXCLUDED.cursor_block, snapshot = EXCLUDED.snapshot, updated_at = now()
		`, strings.ToLower(snap.Pool), cursorBlock, string(data))
		return err
	})
}

// LoadSnapshot returns storage.ErrSnapshotNotFound when the pool has no row.
func (s *Store) LoadSnapshot(ctx context.Context, pool string) (model.PoolSnapshot, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM pool_snapshots WHERE pool_address=$1`, strings.ToLower(pool))
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolSnapshot{}, fmt.Errorf("%s: %w", pool, storage.ErrSnapshotNotFound)
		}
		return model.PoolSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap model.PoolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.PoolSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}
