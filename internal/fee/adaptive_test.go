package fee

import (
	"errors"
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigurationIsValid(t *testing.T) {
	cfg := DefaultConfiguration()
	require.NoError(t, cfg.Validate())
	require.Equal(t, uint16(15000), cfg.MaxFee())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Gamma2 = 0
	require.True(t, errors.Is(cfg.Validate(), ErrZeroGamma))

	cfg = DefaultConfiguration()
	cfg.Alpha1 = math.MaxUint16
	require.True(t, errors.Is(cfg.Validate(), ErrFeeOverflow))

	cfg = DefaultConfiguration()
	cfg.Alpha1, cfg.Alpha2, cfg.BaseFee = 30000, 30000, 5535
	require.NoError(t, cfg.Validate())
}

func TestFeeAtRest(t *testing.T) {
	require.Equal(t, uint16(100), Fee(0, DefaultConfiguration()))
}

func TestFeeSaturates(t *testing.T) {
	require.Equal(t, uint16(15000), Fee(math.MaxUint64, DefaultConfiguration()))
	require.Equal(t, uint16(15000), Fee(uint64(60000+6*8500)*15, DefaultConfiguration()))
}

func TestFeeAtFirstInflection(t *testing.T) {
	// at x == beta1 the first sigmoid sits at half of alpha1
	require.Equal(t, uint16(100+1450), Fee(360*15, DefaultConfiguration()))
}

func TestFeeAlphasZero(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Alpha1, cfg.Alpha2, cfg.BaseFee = 0, 0, 500
	require.Equal(t, uint16(500), Fee(1<<40, cfg))
}

func TestFeeMonotonic(t *testing.T) {
	cfg := DefaultConfiguration()
	prev := Fee(0, cfg)
	for v := uint64(0); v < 2_000_000; v += 997 {
		got := Fee(v, cfg)
		require.GreaterOrEqual(t, got, prev, "volatility %d", v)
		require.LessOrEqual(t, got, cfg.MaxFee())
		prev = got
	}
}

func TestSigmoidSymmetry(t *testing.T) {
	// below and above the inflection point by the same distance sum to alpha
	const g, alpha, beta = 59, 2900, 360
	for _, d := range []uint64{1, 10, 59, 200} {
		lo := sigmoid(u256(beta-d), g, alpha, beta)
		hi := sigmoid(u256(beta+d), g, alpha, beta)
		require.InDelta(t, alpha, lo+hi, 1, "distance %d", d)
	}
}

func u256(v uint64) *uint256.Int { return uint256.NewInt(v) }
