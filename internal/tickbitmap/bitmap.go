// Package tickbitmap tracks which spacing-aligned ticks hold liquidity, packed
// 256 ticks per word, and answers next-initialized-tick queries a word at a time.
package tickbitmap

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"

	"adaptivePool/internal/pricemath"
	"adaptivePool/internal/staged"
)

var ErrTickMisaligned = errors.New("tick not aligned to spacing")

// Bitmap maps word positions to 256-bit words of initialized flags.
type Bitmap struct {
	words *staged.Map[int16, uint256.Int]
}

func New() *Bitmap {
	return &Bitmap{words: staged.New[int16, uint256.Int](func(w uint256.Int) uint256.Int { return w })}
}

// Stage returns a view whose flips stay local until Commit.
func (b *Bitmap) Stage() *Bitmap {
	return &Bitmap{words: b.words.Stage()}
}

func (b *Bitmap) Commit() {
	b.words.Commit()
}

// Words returns the committed non-zero words.
func (b *Bitmap) Words() map[int16]uint256.Int {
	out := make(map[int16]uint256.Int, b.words.Len())
	b.words.Range(func(pos int16, w uint256.Int) bool {
		out[pos] = w
		return true
	})
	return out
}

// compress floors tick/spacing toward negative infinity.
func compress(tick, spacing int32) int32 {
	compressed := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		compressed--
	}
	return compressed
}

func position(compressed int32) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// Flip toggles the initialized flag of tick.
func (b *Bitmap) Flip(tick, spacing int32) error {
	if spacing <= 0 || tick%spacing != 0 {
		return fmt.Errorf("flip %d (spacing %d): %w", tick, spacing, ErrTickMisaligned)
	}
	wordPos, bitPos := position(tick / spacing)

	word, _ := b.words.Get(wordPos)
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	word.Xor(&word, mask)
	if word.IsZero() {
		b.words.Delete(wordPos)
		return nil
	}
	b.words.Set(wordPos, word)
	return nil
}

// IsInitialized reports whether tick's flag is set.
func (b *Bitmap) IsInitialized(tick, spacing int32) bool {
	wordPos, bitPos := position(compress(tick, spacing))
	word, ok := b.words.Get(wordPos)
	if !ok {
		return false
	}
	return word[bitPos/64]&(1<<(bitPos%64)) != 0
}

// NextInitializedTickWithinOneWord returns the next initialized tick at or below
// tick (lte) or strictly above it, looking only inside the word that contains the
// starting position. When nothing is set it returns the word's edge tick with
// initialized=false.
func (b *Bitmap) NextInitializedTickWithinOneWord(tick, spacing int32, lte bool) (int32, bool) {
	compressed := compress(tick, spacing)

	if lte {
		wordPos, bitPos := position(compressed)
		word, _ := b.words.Get(wordPos)
		// bits at or right of bitPos
		bit := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
		mask := new(uint256.Int).Sub(bit, uint256.NewInt(1))
		mask.Or(mask, bit)
		masked := new(uint256.Int).And(&word, mask)

		if masked.IsZero() {
			return (compressed - int32(bitPos)) * spacing, false
		}
		msb := int32(masked.BitLen() - 1)
		return (compressed - (int32(bitPos) - msb)) * spacing, true
	}

	compressed++
	wordPos, bitPos := position(compressed)
	word, _ := b.words.Get(wordPos)
	// bits at or left of bitPos
	low := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	low.Sub(low, uint256.NewInt(1))
	mask := new(uint256.Int).Not(low)
	masked := new(uint256.Int).And(&word, mask)

	if masked.IsZero() {
		return (compressed + int32(255-bitPos)) * spacing, false
	}
	lsb := int32(leastSignificantBit(masked))
	return (compressed + (lsb - int32(bitPos))) * spacing, true
}

// NextInitializedTick walks words until it finds an initialized tick or runs
// past the supported range, in which case the range edge is returned with
// initialized=false.
func (b *Bitmap) NextInitializedTick(tick, spacing int32, lte bool) (int32, bool) {
	for {
		next, initialized := b.NextInitializedTickWithinOneWord(tick, spacing, lte)
		if lte {
			if next <= pricemath.MinTick {
				if initialized && next == pricemath.MinTick {
					return next, true
				}
				return pricemath.MinTick, false
			}
			if initialized {
				return next, true
			}
			tick = next - 1
			continue
		}
		if next >= pricemath.MaxTick {
			if initialized && next == pricemath.MaxTick {
				return next, true
			}
			return pricemath.MaxTick, false
		}
		if initialized {
			return next, true
		}
		tick = next
	}
}

func leastSignificantBit(x *uint256.Int) int {
	for i, limb := range x {
		if limb != 0 {
			return i*64 + bits.TrailingZeros64(limb)
		}
	}
	return 0
}
