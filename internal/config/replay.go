package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Pool          PoolConfig
	In            string
	EventsOut     string
	Errors        string
	MetricsOut    string
	SnapshotDir   string
	PGDSN         string
	Window        time.Duration
	BatchSize     int
	MaxRetries    int
	RetryBackoff  time.Duration
	InitSqrtPrice *big.Int
	SwapMode      string
	Strict        bool
	Resume        bool
	Topic0Map     map[string]string
	LogLevel      string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"errors":        "./data/replay_errors.jsonl",
		"metrics-out":   "./data/window_metrics.jsonl",
		"snapshot-dir":  "./data/snapshots",
		"window":        5 * time.Minute,
		"batch-size":    100,
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"swap-mode":     "price",
		"resume":        true,
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	pool, err := loadPool(v)
	if err != nil {
		return ReplayConfig{}, err
	}
	if pool.Address == (common.Address{}) {
		return ReplayConfig{}, fmt.Errorf("pool-address is required: %w", ErrInvalidValue)
	}

	cfg := ReplayConfig{
		Pool:         pool,
		In:           v.GetString("in"),
		EventsOut:    v.GetString("events-out"),
		Errors:       v.GetString("errors"),
		MetricsOut:   v.GetString("metrics-out"),
		SnapshotDir:  v.GetString("snapshot-dir"),
		PGDSN:        v.GetString("pg-dsn"),
		Window:       v.GetDuration("window"),
		BatchSize:    v.GetInt("batch-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		SwapMode:     v.GetString("swap-mode"),
		Strict:       v.GetBool("strict"),
		Resume:       v.GetBool("resume"),
		Topic0Map:    getStringMap(v, "topic0-map"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.Window < time.Second || cfg.Window%time.Second != 0 {
		return ReplayConfig{}, fmt.Errorf("window %s must be a whole number of seconds: %w", cfg.Window, ErrInvalidValue)
	}

	if cfg.InitSqrtPrice, err = parseSqrtPrice(v); err != nil {
		return ReplayConfig{}, err
	}
	return cfg, nil
}

// parseSqrtPrice reads init-sqrt-price as decimal or 0x-prefixed hex.
func parseSqrtPrice(v *viper.Viper) (*big.Int, error) {
	raw := strings.TrimSpace(v.GetString("init-sqrt-price"))
	if raw == "" {
		return nil, nil
	}
	val, ok := new(big.Int).SetString(raw, 0)
	if !ok || val.Sign() <= 0 {
		return nil, fmt.Errorf("init-sqrt-price %q: %w", raw, ErrInvalidValue)
	}
	return val, nil
}
