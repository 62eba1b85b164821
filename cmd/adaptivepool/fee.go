package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adaptivePool/internal/config"
	"adaptivePool/internal/fee"
	"adaptivePool/internal/pricemath"
)

func runFee(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFeeCurve(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	vols := cfg.Volatilities
	if len(vols) == 0 {
		// rest, then both sigmoid midpoints
		vols = []uint64{0, uint64(cfg.Fee.Beta1) * 15, uint64(cfg.Fee.Beta2) * 15}
	}
	logger.Debug("evaluating fee curve",
		zap.Uint16("max_fee", cfg.Fee.MaxFee()),
		zap.Int("points", len(vols)))

	w := cmd.OutOrStdout()
	for _, v := range vols {
		f := fee.Fee(v, cfg.Fee)
		fmt.Fprintf(w, "%d\t%d\t%s%%\n", v, f, pricemath.FeePercent(uint32(f)))
	}
	return nil
}
