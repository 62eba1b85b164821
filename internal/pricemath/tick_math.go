package pricemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// MinTick is the lowest tick whose sqrt price fits the Q64.96 range.
	MinTick int32 = -887272
	// MaxTick is the highest supported tick.
	MaxTick int32 = -MinTick
)

var (
	// MinSqrtRatio is SqrtRatioAtTick(MinTick).
	MinSqrtRatio = mustBig("4295128739")
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")

	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtPriceOutOfRange = errors.New("sqrt price out of range")
)

var (
	maxUint256 = new(uint256.Int).SetAllOne()
	lowMask32  = uint256.NewInt(0xffffffff)

	// ratioOddTick is sqrt(1.0001^-1) in Q128.128, used when bit 0 of |tick| is set.
	ratioOddTick = mustUint256("fffcb933bd6fad37aa2d162d1a594001")

	// tickRatios[i] is sqrt(1.0001^-(2^(i+1))) in Q128.128.
	tickRatios = [19]*uint256.Int{
		mustUint256("fff97272373d413259a46990580e213a"),
		mustUint256("fff2e50f5f656932ef12357cf3c7fdcc"),
		mustUint256("ffe5caca7e10e4e61c3624eaa0941cd0"),
		mustUint256("ffcb9843d60f6159c9db58835c926644"),
		mustUint256("ff973b41fa98c081472e6896dfb254c0"),
		mustUint256("ff2ea16466c96a3843ec78b326b52861"),
		mustUint256("fe5dee046a99a2a811c461f1969c3053"),
		mustUint256("fcbe86c7900a88aedcffc83b479aa3a4"),
		mustUint256("f987a7253ac413176f2b074cf7815e54"),
		mustUint256("f3392b0822b70005940c7a398e4b70f3"),
		mustUint256("e7159475a2c29b7443b29c7fa6e889d9"),
		mustUint256("d097f3bdfd2022b8845ad8f792aa5825"),
		mustUint256("a9f746462d870fdf8a65dc1f90e061e5"),
		mustUint256("70d869a156d2a1b890bb3df62baf32f7"),
		mustUint256("31be135f97d08fd981231505542fcfa6"),
		mustUint256("9aa508b5b7a84e1c677de54f3e99bc9"),
		mustUint256("5d6af8dedb81196699c329225ee604"),
		mustUint256("2216e584f5fa1ea926041bedfe98"),
		mustUint256("48a170391f7dc42444e8fa2"),
	}
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 fixed-point number,
// rounded up so that TickAtSqrtRatio(SqrtRatioAtTick(t)) == t.
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioOddTick)
	} else {
		ratio.Lsh(uint256.NewInt(1), 128)
	}
	for i, factor := range tickRatios {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, factor)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q128.96, rounding up.
	rem := new(uint256.Int).And(ratio, lowMask32)
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.ToBig(), nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt price is <= sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrSqrtPriceOutOfRange
	}

	low, high := MinTick, MaxTick
	tick := MinTick
	for low <= high {
		mid := low + (high-low)/2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}

func mustBig(dec string) *big.Int {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		panic("pricemath: bad constant " + dec)
	}
	return v
}

func mustUint256(hex string) *uint256.Int {
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		panic("pricemath: bad constant " + hex)
	}
	return uint256.MustFromBig(v)
}
