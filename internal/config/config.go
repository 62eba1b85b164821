package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"adaptivePool/internal/fee"
)

// EnvPrefix is prepended to every environment override, e.g.
// ADAPTIVEPOOL_POOL_ADDRESS or ADAPTIVEPOOL_FEE_BASE_FEE.
const EnvPrefix = "ADAPTIVEPOOL"

var ErrInvalidValue = errors.New("invalid config value")

// PoolConfig describes the pool every command operates on.
type PoolConfig struct {
	ChainID          uint64
	Address          common.Address
	Owner            common.Address
	Plugin           common.Address
	FeeManager       common.Address
	IncentiveManager common.Address
	Token0           common.Address
	Token1           common.Address
	TickSpacing      int32
	OracleWindow     uint32
	Fee              fee.Configuration
}

// load builds a viper instance with env, flags and an optional config file
// layered over the given defaults.
func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setPoolDefaults(v)
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func setPoolDefaults(v *viper.Viper) {
	def := fee.DefaultConfiguration()
	v.SetDefault("chain-id", uint64(56))
	v.SetDefault("tick-spacing", 60)
	v.SetDefault("oracle-window", 30*60)
	v.SetDefault("fee.alpha1", def.Alpha1)
	v.SetDefault("fee.alpha2", def.Alpha2)
	v.SetDefault("fee.beta1", def.Beta1)
	v.SetDefault("fee.beta2", def.Beta2)
	v.SetDefault("fee.gamma1", def.Gamma1)
	v.SetDefault("fee.gamma2", def.Gamma2)
	v.SetDefault("fee.base-fee", def.BaseFee)
	v.SetDefault("log-level", "info")
}

func loadPool(v *viper.Viper) (PoolConfig, error) {
	var errs []error
	addr := func(key string) common.Address {
		a, err := parseAddress(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return a
	}

	cfg := PoolConfig{
		ChainID:          v.GetUint64("chain-id"),
		Address:          addr("pool-address"),
		Owner:            addr("owner"),
		Plugin:           addr("plugin-address"),
		FeeManager:       addr("fee-manager"),
		IncentiveManager: addr("incentive-manager"),
		Token0:           addr("token0"),
		Token1:           addr("token1"),
	}

	spacing := v.GetInt64("tick-spacing")
	if spacing <= 0 || spacing > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("tick-spacing %d: %w", spacing, ErrInvalidValue))
	}
	cfg.TickSpacing = int32(spacing)
	cfg.OracleWindow = v.GetUint32("oracle-window")

	feeCfg, err := loadFee(v)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Fee = feeCfg

	return cfg, errors.Join(errs...)
}

func loadFee(v *viper.Viper) (fee.Configuration, error) {
	var errs []error
	u16 := func(key string) uint16 {
		val := v.GetUint64(key)
		if val > math.MaxUint16 {
			errs = append(errs, fmt.Errorf("%s %d: %w", key, val, ErrInvalidValue))
		}
		return uint16(val)
	}
	u32 := func(key string) uint32 {
		val := v.GetUint64(key)
		if val > math.MaxUint32 {
			errs = append(errs, fmt.Errorf("%s %d: %w", key, val, ErrInvalidValue))
		}
		return uint32(val)
	}

	cfg := fee.Configuration{
		Alpha1:  u16("fee.alpha1"),
		Alpha2:  u16("fee.alpha2"),
		Beta1:   u32("fee.beta1"),
		Beta2:   u32("fee.beta2"),
		Gamma1:  u16("fee.gamma1"),
		Gamma2:  u16("fee.gamma2"),
		BaseFee: u16("fee.base-fee"),
	}
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("fee configuration: %w", err)
	}
	return cfg, nil
}

// parseAddress accepts an empty value as the zero address.
func parseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("address %q: %w", input, ErrInvalidValue)
	}
	return common.HexToAddress(input), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getUintSlice(v *viper.Viper, key string, bits int) ([]uint64, error) {
	items := getStringSlice(v, key)
	out := make([]uint64, 0, len(items))
	for _, item := range items {
		n, err := strconv.ParseUint(item, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", key, item, ErrInvalidValue)
		}
		out = append(out, n)
	}
	return out, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, val := range typed {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

// parseStringMap reads "k1=v1,k2=v2", dropping malformed pairs.
func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	for _, pair := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
