package rate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractRateIsZeroBeforeAnyUpdate(t *testing.T) {
	e := New()
	require.Zero(t, e.ExtractRate())
}

func TestExtractRateReflectsFirstTick(t *testing.T) {
	e := New()
	e.Update(16384)
	require.Greater(t, e.ExtractRate(), 0.0)
}

func TestExtractRateDecaysAfterTrafficStops(t *testing.T) {
	e := New()
	e.Update(65536)
	first := e.ExtractRate()
	require.Greater(t, first, 0.0)

	// No further Update: the window is empty on this tick, so the
	// smoothed rate should fall rather than hold steady.
	second := e.ExtractRate()
	require.Less(t, second, first)
}

func TestExtractCountResetsAfterRead(t *testing.T) {
	e := New()
	e.Update(100)
	e.Update(50)
	require.Equal(t, int64(150), e.ExtractCount())
	require.Equal(t, int64(0), e.ExtractCount())
}

func TestUpdateIsIndependentOfRateWindow(t *testing.T) {
	e := New()
	e.Update(100)
	e.ExtractRate() // folds windowBytes into the EWMA and resets it
	require.Equal(t, int64(100), e.ExtractCount(), "ExtractCount tracks its own counter, unaffected by ExtractRate")
}
