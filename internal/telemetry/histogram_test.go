package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistogram_EmptyStats(t *testing.T) {
	h := NewHistogram()
	stats := h.Percentiles()
	require.Equal(t, Stats{}, stats)
}

func TestHistogram_ComputesPercentiles(t *testing.T) {
	h := NewHistogram()
	for i := 1; i <= 100; i++ {
		h.Record(float64(i))
	}
	stats := h.Percentiles()
	require.Equal(t, 100, stats.Count)
	require.Equal(t, 1.0, stats.Min)
	require.Equal(t, 100.0, stats.Max)
	require.Equal(t, 50.0, stats.Median)
	require.Equal(t, 95.0, stats.P95)
	require.Equal(t, 99.0, stats.P99)
}

func TestHistogram_WindowWraps(t *testing.T) {
	h := NewHistogram()
	for i := 0; i < histogramWindow+10; i++ {
		h.Record(float64(i))
	}
	stats := h.Percentiles()
	require.Equal(t, histogramWindow, stats.Count)
	require.Equal(t, 10.0, stats.Min)
	require.Equal(t, float64(histogramWindow+9), stats.Max)
}
