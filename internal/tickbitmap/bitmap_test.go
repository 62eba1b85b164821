package tickbitmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"adaptivePool/internal/pricemath"
)

func withTicks(t *testing.T, spacing int32, ticks ...int32) *Bitmap {
	t.Helper()
	b := New()
	for _, tick := range ticks {
		require.NoError(t, b.Flip(tick, spacing))
	}
	return b
}

func TestFlipToggles(t *testing.T) {
	b := New()
	require.False(t, b.IsInitialized(-230, 1))
	require.NoError(t, b.Flip(-230, 1))
	require.True(t, b.IsInitialized(-230, 1))
	require.False(t, b.IsInitialized(-231, 1))
	require.False(t, b.IsInitialized(-229, 1))
	require.NoError(t, b.Flip(-230, 1))
	require.False(t, b.IsInitialized(-230, 1))
	require.Empty(t, b.Words())
}

func TestFlipMisaligned(t *testing.T) {
	b := New()
	err := b.Flip(61, 60)
	require.True(t, errors.Is(err, ErrTickMisaligned))
}

func TestNextInitializedTickWithinOneWordGreater(t *testing.T) {
	b := withTicks(t, 1, -200, -55, -4, 70, 78, 84, 139, 240, 535)

	cases := []struct {
		tick        int32
		next        int32
		initialized bool
	}{
		{78, 84, true},
		{-55, -4, true},
		{77, 78, true},
		{-56, -55, true},
		{255, 511, false},
		{-257, -200, true},
		{508, 511, false},
		{511, 535, true},
		{512, 535, true},
	}
	for _, tc := range cases {
		next, ok := b.NextInitializedTickWithinOneWord(tc.tick, 1, false)
		require.Equal(t, tc.next, next, "from %d", tc.tick)
		require.Equal(t, tc.initialized, ok, "from %d", tc.tick)
	}
}

func TestNextInitializedTickWithinOneWordLessOrEqual(t *testing.T) {
	b := withTicks(t, 1, -200, -55, -4, 70, 78, 84, 139, 240, 535)

	cases := []struct {
		tick        int32
		next        int32
		initialized bool
	}{
		{78, 78, true},
		{79, 78, true},
		{258, 256, false},
		{256, 256, false},
		{72, 70, true},
		{-257, -512, false},
		{1023, 768, false},
		{900, 768, false},
	}
	for _, tc := range cases {
		next, ok := b.NextInitializedTickWithinOneWord(tc.tick, 1, true)
		require.Equal(t, tc.next, next, "from %d", tc.tick)
		require.Equal(t, tc.initialized, ok, "from %d", tc.tick)
	}
}

func TestNextInitializedTickWalksWords(t *testing.T) {
	b := withTicks(t, 60, -6000, 60, 60000)

	next, ok := b.NextInitializedTick(120, 60, false)
	require.True(t, ok)
	require.Equal(t, int32(60000), next)

	next, ok = b.NextInitializedTick(59, 60, true)
	require.True(t, ok)
	require.Equal(t, int32(0-6000), next)

	next, ok = b.NextInitializedTick(60000, 60, false)
	require.False(t, ok)
	require.Equal(t, pricemath.MaxTick, next)

	next, ok = b.NextInitializedTick(-6001, 60, true)
	require.False(t, ok)
	require.Equal(t, pricemath.MinTick, next)
}

func TestStagedFlipsCommit(t *testing.T) {
	b := withTicks(t, 10, 100)

	tx := b.Stage()
	require.NoError(t, tx.Flip(100, 10))
	require.NoError(t, tx.Flip(200, 10))
	require.True(t, b.IsInitialized(100, 10))
	require.False(t, b.IsInitialized(200, 10))

	tx.Commit()
	require.False(t, b.IsInitialized(100, 10))
	require.True(t, b.IsInitialized(200, 10))
}
