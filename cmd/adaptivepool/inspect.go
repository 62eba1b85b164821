package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adaptivePool/internal/config"
	"adaptivePool/internal/fee"
	"adaptivePool/internal/model"
	"adaptivePool/internal/pool"
	"adaptivePool/internal/pricemath"
	"adaptivePool/internal/replay"
	"adaptivePool/internal/storage"
	"adaptivePool/internal/storage/postgres"
)

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	snap, err := loadInspectSnapshot(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// a snapshot file may name a pool the flags did not
	settings := poolSettings(cfg.Pool)
	settings.Address = common.HexToAddress(snap.Pool)
	settings.TickSpacing = snap.TickSpacing

	session, err := replay.NewSession(settings, logger)
	if err != nil {
		return err
	}
	if err := session.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	return printInspection(cmd.OutOrStdout(), session, snap, cfg)
}

func loadInspectSnapshot(ctx context.Context, cfg config.InspectConfig, logger *zap.Logger) (model.PoolSnapshot, error) {
	if cfg.Snapshot != "" {
		return storage.ReadSnapshotFile(cfg.Snapshot)
	}

	address := cfg.Pool.Address.Hex()
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.Options{Logger: logger})
		if err != nil {
			return model.PoolSnapshot{}, fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		return pg.LoadSnapshot(ctx, address)
	}
	return storage.NewFileSnapshotStore(cfg.SnapshotDir).LoadSnapshot(ctx, address)
}

func printInspection(w io.Writer, session *replay.Session, snap model.PoolSnapshot, cfg config.InspectConfig) error {
	st := session.Pool.State()
	if !st.Initialized() {
		return pool.ErrNotInitialized
	}

	fmt.Fprintf(w, "pool        %s\n", snap.Pool)
	fmt.Fprintf(w, "taken at    %s\n", snap.TakenAt.Format("2006-01-02T15:04:05Z07:00"))
	if snap.Cursor != nil {
		fmt.Fprintf(w, "cursor      block %d log %d ts %d\n", snap.Cursor.BlockNumber, snap.Cursor.LogIndex, snap.Cursor.Timestamp)
	}
	fmt.Fprintf(w, "price       %s\n", pricemath.PriceFromSqrtX96(st.SqrtPriceX96, cfg.Decimals))
	fmt.Fprintf(w, "tick        %d\n", st.Tick)
	fmt.Fprintf(w, "fee         %d pips (%s%%)\n", st.Fee, pricemath.FeePercent(uint32(st.Fee)))
	fmt.Fprintf(w, "liquidity   %s\n", st.Liquidity)
	fmt.Fprintf(w, "reserves    %s / %s\n", st.Balance0, st.Balance1)
	fmt.Fprintf(w, "positions   %d, initialized ticks %d\n", len(snap.Positions), len(snap.Ticks))

	vol, err := session.Pool.AverageVolatility()
	if err != nil {
		fmt.Fprintf(w, "volatility  unavailable: %v\n", err)
	} else {
		next := fee.Fee(vol, session.Plugin.FeeConfiguration())
		fmt.Fprintf(w, "volatility  %d (next fee %d pips)\n", vol, next)
	}

	if len(cfg.SecondsAgo) == 0 {
		return nil
	}
	ticks, vols, err := session.Pool.Observe(cfg.SecondsAgo)
	if err != nil {
		if errors.Is(err, pool.ErrNotInitialized) {
			return err
		}
		fmt.Fprintf(w, "observe     unavailable: %v\n", err)
		return nil
	}
	for i, ago := range cfg.SecondsAgo {
		fmt.Fprintf(w, "observe -%-6d tickCumulative %d volatilityCumulative %s\n", ago, ticks[i], vols[i])
	}
	return nil
}
