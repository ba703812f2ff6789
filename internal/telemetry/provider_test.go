package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WiresAllInstruments(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{})
	require.NoError(t, err)
	require.NotNil(t, p.Health)
	require.NotNil(t, p.Performance)
	require.NotNil(t, p.Events)
	require.NotNil(t, p.WindowTracer)
	require.NotNil(t, p.Tracer())

	require.NoError(t, p.Shutdown(ctx))
}
