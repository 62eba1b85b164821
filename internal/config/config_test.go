package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"adaptivePool/internal/fee"
)

const testPool = "0x00000000000000000000000000000000000000aa"

func replayFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	fs.String("pool-address", "", "")
	fs.String("swap-mode", "price", "")
	fs.Duration("window", 5*time.Minute, "")
	fs.Uint16("fee.base-fee", 100, "")
	fs.String("init-sqrt-price", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadReplayDefaults(t *testing.T) {
	cfg, err := LoadReplay("", replayFlags(t, "--pool-address", testPool))
	require.NoError(t, err)

	require.Equal(t, common.HexToAddress(testPool), cfg.Pool.Address)
	require.Equal(t, uint64(56), cfg.Pool.ChainID)
	require.Equal(t, int32(60), cfg.Pool.TickSpacing)
	require.Equal(t, uint32(1800), cfg.Pool.OracleWindow)
	require.Equal(t, fee.DefaultConfiguration(), cfg.Pool.Fee)
	require.Equal(t, 5*time.Minute, cfg.Window)
	require.Equal(t, "price", cfg.SwapMode)
	require.True(t, cfg.Resume)
	require.Nil(t, cfg.InitSqrtPrice)
	require.Empty(t, cfg.Topic0Map)
}

func TestLoadReplayEnvAndFlags(t *testing.T) {
	t.Setenv("ADAPTIVEPOOL_FEE_ALPHA1", "1000")
	t.Setenv("ADAPTIVEPOOL_TOPIC0_MAP", "0xabc=swap, bad ,0xdef=")
	t.Setenv("ADAPTIVEPOOL_SWAP_MODE", "amount")

	cfg, err := LoadReplay("", replayFlags(t,
		"--pool-address", testPool,
		"--fee.base-fee", "250",
		"--init-sqrt-price", "0x1000000000000000000000000",
	))
	require.NoError(t, err)
	require.Equal(t, uint16(1000), cfg.Pool.Fee.Alpha1)
	require.Equal(t, uint16(250), cfg.Pool.Fee.BaseFee)
	require.Equal(t, "amount", cfg.SwapMode)
	require.Equal(t, map[string]string{"0xabc": "swap"}, cfg.Topic0Map)
	require.Equal(t, "79228162514264337593543950336", cfg.InitSqrtPrice.String())
}

func TestLoadReplayRejectsBadValues(t *testing.T) {
	_, err := LoadReplay("", replayFlags(t))
	require.True(t, errors.Is(err, ErrInvalidValue), "pool address is required")

	_, err = LoadReplay("", replayFlags(t, "--pool-address", "0x1234"))
	require.True(t, errors.Is(err, ErrInvalidValue))

	_, err = LoadReplay("", replayFlags(t, "--pool-address", testPool, "--window", "1500ms"))
	require.True(t, errors.Is(err, ErrInvalidValue))

	_, err = LoadReplay("", replayFlags(t, "--pool-address", testPool, "--init-sqrt-price", "-5"))
	require.True(t, errors.Is(err, ErrInvalidValue))

	t.Setenv("ADAPTIVEPOOL_FEE_BASE_FEE", "60000")
	_, err = LoadReplay("", replayFlags(t, "--pool-address", testPool))
	require.True(t, errors.Is(err, fee.ErrFeeOverflow))

	t.Setenv("ADAPTIVEPOOL_FEE_BASE_FEE", "70000")
	_, err = LoadReplay("", replayFlags(t, "--pool-address", testPool))
	require.True(t, errors.Is(err, ErrInvalidValue))
}

func TestLoadInspectFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adaptivepool.yaml")
	body := []byte(`pool-address: "` + testPool + `"
tick-spacing: 10
seconds-ago: [0, 30, 3600]
fee:
  gamma1: 40
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := LoadInspect(path, nil)
	require.NoError(t, err)
	require.Equal(t, int32(10), cfg.Pool.TickSpacing)
	require.Equal(t, []uint32{0, 30, 3600}, cfg.SecondsAgo)
	require.Equal(t, uint16(40), cfg.Pool.Fee.Gamma1)
	require.Equal(t, int32(8), cfg.Decimals)

	_, err = LoadInspect(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestLoadFeeCurve(t *testing.T) {
	fs := pflag.NewFlagSet("fee", pflag.ContinueOnError)
	fs.StringSlice("volatility", nil, "")
	require.NoError(t, fs.Parse([]string{"--volatility", "0,5400", "--volatility", "1000000"}))

	cfg, err := LoadFeeCurve("", fs)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 5400, 1000000}, cfg.Volatilities)
	require.Equal(t, "info", cfg.LogLevel)

	t.Setenv("ADAPTIVEPOOL_VOLATILITY", "12,x")
	_, err = LoadFeeCurve("", nil)
	require.True(t, errors.Is(err, ErrInvalidValue))
}

func TestParseStringMap(t *testing.T) {
	require.Equal(t, map[string]string{"a": "b", "c": "d=e"}, parseStringMap(" a = b ,c=d=e,=x,y"))
	require.Empty(t, parseStringMap("  "))
}
