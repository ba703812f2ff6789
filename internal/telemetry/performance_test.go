package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestPerformance_RecordAndStats(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	p := NewPerformance(meter, 10*time.Millisecond)

	p.Record("classify", 5*time.Millisecond)
	p.Record("classify", 15*time.Millisecond)

	stats := p.Stats("classify")
	require.Equal(t, 2, stats.Count)
	require.InDelta(t, 5.0, stats.Min, 0.01)
	require.InDelta(t, 15.0, stats.Max, 0.01)
}

func TestPerformance_Time(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	p := NewPerformance(meter, time.Second)

	stop := p.Time("launch_correlate")
	stop()

	stats := p.Stats("launch_correlate")
	require.Equal(t, 1, stats.Count)
}

func TestPerformance_UnknownOpReturnsZeroStats(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	p := NewPerformance(meter, time.Second)

	require.Equal(t, Stats{}, p.Stats("never-recorded"))
}

func TestPerformance_AllStats(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	p := NewPerformance(meter, time.Second)

	p.Record("a", time.Millisecond)
	p.Record("b", 2*time.Millisecond)

	all := p.AllStats()
	require.Len(t, all, 2)
	require.Contains(t, all, "a")
	require.Contains(t, all, "b")
}
