package main

import (
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"adaptivePool/internal/fee"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "adaptivepool",
		Short:        "Concentrated liquidity pool with an adaptive fee",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded pool events through the adaptive pool",
		RunE:  runReplay,
	}
	poolFlags(replayCmd.Flags())
	replayCmd.Flags().String("in", "", "input JSONL of raw logs or typed events (default stdin)")
	replayCmd.Flags().String("events-out", "", "write decoded raw logs as typed events JSONL")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "rejected lines JSONL")
	replayCmd.Flags().String("metrics-out", "./data/window_metrics.jsonl", "window metrics JSONL")
	replayCmd.Flags().String("snapshot-dir", "./data/snapshots", "snapshot directory, empty disables file snapshots")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for metrics and snapshots")
	replayCmd.Flags().Duration("window", 5*time.Minute, "metrics window (e.g. 1m, 5m, 1h)")
	replayCmd.Flags().Int("batch-size", 100, "closed windows per metrics write")
	replayCmd.Flags().Int("max-retries", 5, "maximum Postgres retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("init-sqrt-price", "", "initial sqrtPriceX96, default is the first swap's price")
	replayCmd.Flags().String("swap-mode", "price", "swap replay mode (price, amount)")
	replayCmd.Flags().Bool("strict", false, "stop at the first rejected event")
	replayCmd.Flags().Bool("resume", true, "resume from the latest stored snapshot")
	replayCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print price, fee, liquidity and oracle readings of a snapshot",
		RunE:  runInspect,
	}
	poolFlags(inspectCmd.Flags())
	inspectCmd.Flags().String("snapshot", "", "snapshot file, overrides the stored snapshot lookup")
	inspectCmd.Flags().String("snapshot-dir", "./data/snapshots", "snapshot directory")
	inspectCmd.Flags().String("pg-dsn", "", "read the snapshot from Postgres")
	inspectCmd.Flags().StringSlice("seconds-ago", []string{"0", "60", "300"}, "oracle observation offsets")
	inspectCmd.Flags().Int32("decimals", 8, "price decimal places")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(inspectCmd)

	feeCmd := &cobra.Command{
		Use:   "fee",
		Short: "Evaluate the adaptive fee curve",
		RunE:  runFee,
	}
	feeFlags(feeCmd.Flags())
	feeCmd.Flags().StringSlice("volatility", nil, "average volatility values to evaluate")
	feeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(feeCmd)

	return root
}

func poolFlags(fs *pflag.FlagSet) {
	fs.Uint64("chain-id", 56, "chain id recorded with metrics")
	fs.String("pool-address", "", "pool address")
	fs.String("owner", "", "pool owner")
	fs.String("plugin-address", "", "plugin address")
	fs.String("fee-manager", "", "address allowed to change the fee configuration")
	fs.String("incentive-manager", "", "address allowed to set the incentive")
	fs.String("token0", "", "token0 address")
	fs.String("token1", "", "token1 address")
	fs.Int32("tick-spacing", 60, "tick spacing")
	fs.Uint32("oracle-window", 30*60, "volatility averaging window in seconds")
	feeFlags(fs)
}

func feeFlags(fs *pflag.FlagSet) {
	def := fee.DefaultConfiguration()
	fs.Uint16("fee.alpha1", def.Alpha1, "first sigmoid height in pips")
	fs.Uint16("fee.alpha2", def.Alpha2, "second sigmoid height in pips")
	fs.Uint32("fee.beta1", def.Beta1, "first sigmoid midpoint")
	fs.Uint32("fee.beta2", def.Beta2, "second sigmoid midpoint")
	fs.Uint16("fee.gamma1", def.Gamma1, "first sigmoid steepness")
	fs.Uint16("fee.gamma2", def.Gamma2, "second sigmoid steepness")
	fs.Uint16("fee.base-fee", def.BaseFee, "base fee in pips")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// redactDSN drops the password from a Postgres DSN for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
