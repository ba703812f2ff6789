package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestHealth_SnapshotReflectsSetters(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	h, err := NewHealth(meter)
	require.NoError(t, err)

	h.SetWMConnected(true)
	h.SetTrackedWindows(7)
	h.SetActiveProject("widgets")
	h.SetLaunchRates(0.9, 0.1)

	snap := h.Snapshot()
	require.True(t, snap.WMConnected)
	require.Equal(t, 7, snap.TrackedWindows)
	require.Equal(t, "widgets", snap.ActiveProject)
	require.InDelta(t, 0.9, snap.LaunchMatchRate, 0.001)
	require.InDelta(t, 0.1, snap.LaunchExpireRate, 0.001)
}

func TestHealth_DefaultSnapshotIsZeroValue(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	h, err := NewHealth(meter)
	require.NoError(t, err)

	snap := h.Snapshot()
	require.False(t, snap.WMConnected)
	require.Equal(t, 0, snap.TrackedWindows)
	require.True(t, snap.LastRecoveryAt.IsZero())
}
