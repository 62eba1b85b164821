package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adaptivePool/internal/config"
	"adaptivePool/internal/dex"
	"adaptivePool/internal/model"
	"adaptivePool/internal/replay"
	"adaptivePool/internal/storage"
	"adaptivePool/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	mode, err := replay.ParseSwapMode(cfg.SwapMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := replay.NewSession(poolSettings(cfg.Pool), logger)
	if err != nil {
		return err
	}

	sinks := replay.Sinks{}
	var stores []storage.SnapshotStore

	if cfg.SnapshotDir != "" {
		stores = append(stores, storage.NewFileSnapshotStore(cfg.SnapshotDir))
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.Options{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := pg.UpsertPools(ctx, []model.Pool{session.PoolRecord()}); err != nil {
			return err
		}
		stores = append(stores, pg)
		sinks.Metrics = append(sinks.Metrics, pg)
	}
	sinks.Snapshots = stores

	if cfg.MetricsOut != "" {
		sinks.Metrics = append(sinks.Metrics, storage.NewJsonlStorage(cfg.MetricsOut))
	}
	if cfg.Errors != "" {
		sinks.Errors = storage.NewJsonlStorage(cfg.Errors)
	}
	if cfg.EventsOut != "" {
		sinks.Events = storage.NewJsonlStorage(cfg.EventsOut)
	}

	var resumeFrom *model.ReplayCursor
	if cfg.Resume {
		snap, found, err := latestSnapshot(ctx, stores, session.Settings().Address.Hex())
		if err != nil {
			return err
		}
		if found {
			if err := session.Restore(snap); err != nil {
				return fmt.Errorf("restore snapshot: %w", err)
			}
			resumeFrom = snap.Cursor
			logger.Info("resumed from snapshot",
				zap.Time("taken_at", snap.TakenAt),
				zap.Int32("tick", snap.Global.Tick),
				zap.Uint16("fee", snap.Global.Fee))
		}
	}

	decoder, err := dex.NewPoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	replayer := replay.NewReplayer(session, mode, cfg.InitSqrtPrice, logger)
	replayer.ResumeAfter(resumeFrom)

	var input io.Reader = cmd.InOrStdin()
	if cfg.In != "" {
		f, err := os.Open(cfg.In)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	logger.Info("replay start",
		zap.String("pool", cfg.Pool.Address.Hex()),
		zap.String("in", cfg.In),
		zap.String("swap_mode", string(mode)),
		zap.Duration("window", cfg.Window),
		zap.String("snapshot_dir", cfg.SnapshotDir),
		zap.String("pg", redactDSN(cfg.PGDSN)),
		zap.Bool("resumed", resumeFrom != nil),
	)

	runner := replay.NewRunner(replay.RunConfig{
		WindowSeconds: uint64(cfg.Window.Seconds()),
		BatchSize:     cfg.BatchSize,
		Strict:        cfg.Strict,
	}, session, replayer, decoder, sinks, logger)

	_, err = runner.Run(ctx, input)
	return err
}

// latestSnapshot returns the snapshot with the furthest cursor across stores.
func latestSnapshot(ctx context.Context, stores []storage.SnapshotStore, pool string) (model.PoolSnapshot, bool, error) {
	var (
		best  model.PoolSnapshot
		found bool
	)
	for _, store := range stores {
		snap, err := store.LoadSnapshot(ctx, pool)
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			continue
		}
		if err != nil {
			return model.PoolSnapshot{}, false, fmt.Errorf("load snapshot: %w", err)
		}
		if !found || newerCursor(snap.Cursor, best.Cursor) {
			best, found = snap, true
		}
	}
	return best, found, nil
}

func newerCursor(a, b *model.ReplayCursor) bool {
	if a == nil {
		return false
	}
	return b == nil || b.After(a.BlockNumber, a.LogIndex)
}

func poolSettings(p config.PoolConfig) replay.PoolSettings {
	return replay.PoolSettings{
		ChainID:          p.ChainID,
		Address:          p.Address,
		Owner:            p.Owner,
		Plugin:           p.Plugin,
		FeeManager:       p.FeeManager,
		IncentiveManager: p.IncentiveManager,
		Token0:           p.Token0,
		Token1:           p.Token1,
		TickSpacing:      p.TickSpacing,
		OracleWindow:     p.OracleWindow,
		Fee:              p.Fee,
	}
}
