package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"

	"adaptivePool/internal/fee"
)

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	Pool        PoolConfig
	Snapshot    string
	SnapshotDir string
	PGDSN       string
	SecondsAgo  []uint32
	Decimals    int32
	LogLevel    string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"snapshot-dir": "./data/snapshots",
		"seconds-ago":  "0,60,300",
		"decimals":     8,
	})
	if err != nil {
		return InspectConfig{}, err
	}

	pool, err := loadPool(v)
	if err != nil {
		return InspectConfig{}, err
	}
	ago, err := getUintSlice(v, "seconds-ago", 32)
	if err != nil {
		return InspectConfig{}, err
	}
	secondsAgo := make([]uint32, len(ago))
	for i, s := range ago {
		secondsAgo[i] = uint32(s)
	}

	cfg := InspectConfig{
		Pool:        pool,
		Snapshot:    v.GetString("snapshot"),
		SnapshotDir: v.GetString("snapshot-dir"),
		PGDSN:       v.GetString("pg-dsn"),
		SecondsAgo:  secondsAgo,
		Decimals:    v.GetInt32("decimals"),
		LogLevel:    v.GetString("log-level"),
	}
	if cfg.Snapshot == "" && cfg.PGDSN == "" && pool.Address == (common.Address{}) {
		return InspectConfig{}, fmt.Errorf("snapshot or pool-address is required: %w", ErrInvalidValue)
	}
	return cfg, nil
}

// FeeCurveConfig holds configuration for the fee command.
type FeeCurveConfig struct {
	Fee          fee.Configuration
	Volatilities []uint64
	LogLevel     string
}

func LoadFeeCurve(cfgFile string, flags *pflag.FlagSet) (FeeCurveConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return FeeCurveConfig{}, err
	}
	feeCfg, err := loadFee(v)
	if err != nil {
		return FeeCurveConfig{}, err
	}
	vols, err := getUintSlice(v, "volatility", 64)
	if err != nil {
		return FeeCurveConfig{}, err
	}
	return FeeCurveConfig{Fee: feeCfg, Volatilities: vols, LogLevel: v.GetString("log-level")}, nil
}
