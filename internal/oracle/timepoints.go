// Package oracle keeps a fixed ring of timepoints holding cumulative tick and
// cumulative squared tick change, and answers point-in-time and windowed reads
// by binary search and linear interpolation.
package oracle

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// Capacity is the number of timepoint slots; indexes wrap at 16 bits.
const Capacity = 1 << 16

// DefaultWindow is the averaging horizon for volatility, in seconds.
const DefaultWindow uint32 = 30 * 60

var (
	ErrNotInitialized     = errors.New("oracle not initialized")
	ErrAlreadyInitialized = errors.New("oracle already initialized")
	ErrTargetTooOld       = errors.New("target predates oldest timepoint")
)

// Timepoint is one observation. TickCumulative and VolatilityCumulative are
// running sums over time; Tick is the tick that was in effect up to BlockTimestamp.
type Timepoint struct {
	Initialized          bool
	BlockTimestamp       uint32
	TickCumulative       int64
	VolatilityCumulative uint256.Int
	Tick                 int32
}

// Buffer is the timepoint ring. A root buffer owns the slots; a staged buffer
// records writes in a side table until Commit.
type Buffer struct {
	slots   *[Capacity]Timepoint
	parent  *Buffer
	pending map[uint16]Timepoint
	window  uint32
}

// NewBuffer allocates an empty ring averaging volatility over window seconds.
func NewBuffer(window uint32) *Buffer {
	if window == 0 {
		window = DefaultWindow
	}
	return &Buffer{slots: new([Capacity]Timepoint), window: window}
}

// Window returns the averaging horizon in seconds.
func (b *Buffer) Window() uint32 {
	return b.window
}

func (b *Buffer) Stage() *Buffer {
	return &Buffer{parent: b, pending: make(map[uint16]Timepoint), window: b.window}
}

func (b *Buffer) Commit() {
	if b.parent == nil {
		return
	}
	for i, tp := range b.pending {
		b.parent.set(i, tp)
	}
	b.pending = make(map[uint16]Timepoint)
}

// At returns slot i.
func (b *Buffer) At(i uint16) Timepoint {
	if b.parent == nil {
		return b.slots[i]
	}
	if tp, ok := b.pending[i]; ok {
		return tp
	}
	return b.parent.At(i)
}

func (b *Buffer) set(i uint16, tp Timepoint) {
	if b.parent == nil {
		b.slots[i] = tp
		return
	}
	b.pending[i] = tp
}

// Restore overwrites slot i; used when loading persisted state.
func (b *Buffer) Restore(i uint16, tp Timepoint) {
	b.set(i, tp)
}

// Initialize writes the first timepoint into slot 0.
func (b *Buffer) Initialize(timestamp uint32, tick int32) error {
	if b.At(0).Initialized {
		return ErrAlreadyInitialized
	}
	b.set(0, Timepoint{Initialized: true, BlockTimestamp: timestamp, Tick: tick})
	return nil
}

// OldestIndex returns the oldest retained slot given the last written one.
func (b *Buffer) OldestIndex(lastIndex uint16) uint16 {
	next := lastIndex + 1
	if b.At(next).Initialized {
		return next
	}
	return 0
}

// Write appends a timepoint for timestamp after lastIndex. At most one
// timepoint is kept per timestamp; a repeated timestamp leaves the ring as is.
func (b *Buffer) Write(lastIndex uint16, timestamp uint32, tick int32) (uint16, uint16) {
	last := b.At(lastIndex)
	if last.BlockTimestamp == timestamp {
		return lastIndex, b.OldestIndex(lastIndex)
	}

	index := lastIndex + 1
	b.set(index, extend(last, timestamp, tick))
	return index, b.OldestIndex(index)
}

// extend projects last forward to timestamp assuming tick was in effect.
func extend(last Timepoint, timestamp uint32, tick int32) Timepoint {
	delta := timestamp - last.BlockTimestamp

	tickDelta := int64(tick) - int64(last.Tick)
	var sq uint256.Int
	sq.SetUint64(uint64(tickDelta * tickDelta))
	sq.Mul(&sq, uint256.NewInt(uint64(delta)))

	next := Timepoint{
		Initialized:    true,
		BlockTimestamp: timestamp,
		TickCumulative: last.TickCumulative + int64(tick)*int64(delta),
		Tick:           tick,
	}
	next.VolatilityCumulative.Add(&last.VolatilityCumulative, &sq)
	return next
}

// lte compares two timestamps that may have wrapped, relative to now.
func lte(now, a, b uint32) bool {
	if a <= now && b <= now {
		return a <= b
	}
	// anything above now was written before the counter wrapped
	aAdj, bAdj := uint64(a), uint64(b)
	if a <= now {
		aAdj += 1 << 32
	}
	if b <= now {
		bAdj += 1 << 32
	}
	return aAdj <= bAdj
}

// binarySearch finds the written timepoints surrounding target. The caller
// guarantees oldest <= target < last.
func (b *Buffer) binarySearch(now, target uint32, lastIndex, oldestIndex uint16) (Timepoint, Timepoint) {
	l := int(oldestIndex)
	r := int(lastIndex)
	if r < l {
		r += Capacity
	}

	for {
		i := (l + r) / 2
		beforeOrAt := b.At(uint16(i))
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}
		atOrAfter := b.At(uint16(i + 1))

		targetAtOrAfter := lte(now, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(now, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}
		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

// SingleTimepoint returns the cumulative values as of now - secondsAgo,
// interpolating between written timepoints or extrapolating past the last one.
func (b *Buffer) SingleTimepoint(now, secondsAgo uint32, tick int32, lastIndex, oldestIndex uint16) (Timepoint, error) {
	if !b.At(0).Initialized {
		return Timepoint{}, ErrNotInitialized
	}
	target := now - secondsAgo

	last := b.At(lastIndex)
	if secondsAgo == 0 || lte(now, last.BlockTimestamp, target) {
		if last.BlockTimestamp == target {
			return last, nil
		}
		return extend(last, target, tick), nil
	}

	oldest := b.At(oldestIndex)
	if !lte(now, oldest.BlockTimestamp, target) {
		return Timepoint{}, fmt.Errorf("timepoint %ds ago: %w", secondsAgo, ErrTargetTooOld)
	}
	if oldest.BlockTimestamp == target {
		return oldest, nil
	}

	beforeOrAt, atOrAfter := b.binarySearch(now, target, lastIndex, oldestIndex)
	if target == beforeOrAt.BlockTimestamp {
		return beforeOrAt, nil
	}
	if target == atOrAfter.BlockTimestamp {
		return atOrAfter, nil
	}

	span := int64(atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp)
	elapsed := int64(target - beforeOrAt.BlockTimestamp)

	out := Timepoint{
		Initialized:    true,
		BlockTimestamp: target,
		TickCumulative: beforeOrAt.TickCumulative + (atOrAfter.TickCumulative-beforeOrAt.TickCumulative)/span*elapsed,
		Tick:           atOrAfter.Tick,
	}
	var volDelta uint256.Int
	volDelta.Sub(&atOrAfter.VolatilityCumulative, &beforeOrAt.VolatilityCumulative)
	volDelta.Div(&volDelta, uint256.NewInt(uint64(span)))
	volDelta.Mul(&volDelta, uint256.NewInt(uint64(elapsed)))
	out.VolatilityCumulative.Add(&beforeOrAt.VolatilityCumulative, &volDelta)
	return out, nil
}

// AverageVolatility returns the mean squared tick change per second over the
// trailing window. A ring younger than the window is averaged over the history
// it has.
func (b *Buffer) AverageVolatility(now uint32, tick int32, lastIndex, oldestIndex uint16) (uint64, error) {
	current, err := b.SingleTimepoint(now, 0, tick, lastIndex, oldestIndex)
	if err != nil {
		return 0, err
	}

	oldest := b.At(oldestIndex)
	windowStart := now - b.window

	var past Timepoint
	var span uint32
	if lte(now, oldest.BlockTimestamp, windowStart) {
		past, err = b.SingleTimepoint(now, b.window, tick, lastIndex, oldestIndex)
		if err != nil {
			return 0, err
		}
		span = b.window
	} else {
		past = oldest
		span = now - oldest.BlockTimestamp
	}
	if span == 0 {
		return 0, nil
	}

	var avg uint256.Int
	avg.Sub(&current.VolatilityCumulative, &past.VolatilityCumulative)
	avg.Div(&avg, uint256.NewInt(uint64(span)))
	if !avg.IsUint64() {
		return math.MaxUint64, nil
	}
	return avg.Uint64(), nil
}

// Observe returns cumulative tick and volatility for each secondsAgo.
func (b *Buffer) Observe(now uint32, secondsAgos []uint32, tick int32, lastIndex, oldestIndex uint16) ([]int64, []uint256.Int, error) {
	tickCumulatives := make([]int64, len(secondsAgos))
	volatilityCumulatives := make([]uint256.Int, len(secondsAgos))
	for i, ago := range secondsAgos {
		tp, err := b.SingleTimepoint(now, ago, tick, lastIndex, oldestIndex)
		if err != nil {
			return nil, nil, err
		}
		tickCumulatives[i] = tp.TickCumulative
		volatilityCumulatives[i] = tp.VolatilityCumulative
	}
	return tickCumulatives, volatilityCumulatives, nil
}
