// Package fee computes the adaptive swap fee from average volatility as a base
// fee plus two sigmoids.
package fee

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// blockInterval normalizes per-second volatility to a per-block figure.
const blockInterval = 15

var (
	ErrZeroGamma   = errors.New("gamma must be nonzero")
	ErrFeeOverflow = errors.New("alpha1 + alpha2 + baseFee exceeds max fee")
)

// Configuration parameterizes the two sigmoid terms. Alphas and the base fee
// are in pips (1e-6); betas are inflection points in volatility units; gammas
// set the steepness.
type Configuration struct {
	Alpha1  uint16 `json:"alpha1"`
	Alpha2  uint16 `json:"alpha2"`
	Beta1   uint32 `json:"beta1"`
	Beta2   uint32 `json:"beta2"`
	Gamma1  uint16 `json:"gamma1"`
	Gamma2  uint16 `json:"gamma2"`
	BaseFee uint16 `json:"base_fee"`
}

// DefaultConfiguration tops out at 1.5% under extreme volatility and rests at 0.01%.
func DefaultConfiguration() Configuration {
	return Configuration{
		Alpha1:  2900,
		Alpha2:  15000 - 3000,
		Beta1:   360,
		Beta2:   60000,
		Gamma1:  59,
		Gamma2:  8500,
		BaseFee: 100,
	}
}

// Validate checks that the fee can never exceed the uint16 range and that both
// sigmoids are well defined.
func (c Configuration) Validate() error {
	if c.Gamma1 == 0 || c.Gamma2 == 0 {
		return ErrZeroGamma
	}
	if uint32(c.Alpha1)+uint32(c.Alpha2)+uint32(c.BaseFee) > math.MaxUint16 {
		return fmt.Errorf("alpha1 %d alpha2 %d base %d: %w", c.Alpha1, c.Alpha2, c.BaseFee, ErrFeeOverflow)
	}
	return nil
}

// MaxFee is the fee the curve approaches as volatility grows without bound.
func (c Configuration) MaxFee() uint16 {
	total := uint32(c.Alpha1) + uint32(c.Alpha2) + uint32(c.BaseFee)
	if total > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(total)
}

// Fee maps an average volatility to a fee in pips.
func Fee(volatility uint64, cfg Configuration) uint16 {
	if cfg.Alpha1 == 0 && cfg.Alpha2 == 0 {
		return cfg.BaseFee
	}
	x := uint256.NewInt(volatility / blockInterval)

	sum := sigmoid(x, cfg.Gamma1, cfg.Alpha1, uint64(cfg.Beta1))
	sum += sigmoid(x, cfg.Gamma2, cfg.Alpha2, uint64(cfg.Beta2))
	total := sum + uint64(cfg.BaseFee)
	if total > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(total)
}

// sigmoid returns alpha / (1 + e^((beta - x) / g)), computed as
// alpha * e^(d/g) / (1 + e^(d/g)) with the exponential expanded around zero.
// Beyond six steepness units the curve is treated as saturated.
func sigmoid(x *uint256.Int, g, alpha uint16, beta uint64) uint64 {
	if g == 0 || alpha == 0 {
		return 0
	}
	b := uint256.NewInt(beta)
	six := new(uint256.Int).Mul(uint256.NewInt(6), uint256.NewInt(uint64(g)))
	gBig := uint256.NewInt(uint64(g))
	g8 := new(uint256.Int).Exp(gBig, uint256.NewInt(8))
	a := uint256.NewInt(uint64(alpha))

	if x.Gt(b) {
		d := new(uint256.Int).Sub(x, b)
		if !d.Lt(six) {
			return uint64(alpha)
		}
		ex := expXg8(d, gBig, g8)
		num := new(uint256.Int).Mul(a, ex)
		den := new(uint256.Int).Add(g8, ex)
		return num.Div(num, den).Uint64()
	}

	d := new(uint256.Int).Sub(b, x)
	if !d.Lt(six) {
		return 0
	}
	den := new(uint256.Int).Add(g8, expXg8(d, gBig, g8))
	num := new(uint256.Int).Mul(a, g8)
	return num.Div(num, den).Uint64()
}

// expXg8 approximates g^8 * e^(x/g) by the first nine terms of its Taylor series.
// x < 6g keeps every term well inside 256 bits.
func expXg8(x, g, g8 *uint256.Int) *uint256.Int {
	factorials := [9]uint64{1, 1, 2, 6, 24, 120, 720, 5040, 40320}

	res := new(uint256.Int).Set(g8)
	gPow := new(uint256.Int).Set(g8)
	xPow := uint256.NewInt(1)
	for k := 1; k <= 8; k++ {
		gPow.Div(gPow, g)
		xPow.Mul(xPow, x)
		term := new(uint256.Int).Mul(xPow, gPow)
		term.Div(term, uint256.NewInt(factorials[k]))
		res.Add(res, term)
	}
	return res
}
