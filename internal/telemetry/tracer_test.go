package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

func newTestTracer(t *testing.T) *WindowTracer {
	t.Helper()
	log := newTestEventLog(t)
	return NewWindowTracer(log.DB())
}

func TestWindowTracer_StartRecordGet(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	id, err := tracer.Start(ctx, domain.WindowMatcher{AppID: "code"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	err = tracer.Record(ctx, id, domain.TraceEvent{
		Timestamp: time.Now(),
		Type:      "focus",
		Desc:      "window focused",
	})
	require.NoError(t, err)

	session, ok := tracer.Get(id)
	require.True(t, ok)
	require.Len(t, session.Events, 1)
	require.Equal(t, "focus", session.Events[0].Type)
}

func TestWindowTracer_RefusesPastLimit(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	for i := 0; i < maxConcurrentTraces; i++ {
		_, err := tracer.Start(ctx, domain.WindowMatcher{PID: i + 1}, 10)
		require.NoError(t, err)
	}

	_, err := tracer.Start(ctx, domain.WindowMatcher{PID: 999}, 10)
	require.Error(t, err)
}

func TestWindowTracer_StoppedSessionFreesSlot(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	var ids []string
	for i := 0; i < maxConcurrentTraces; i++ {
		id, err := tracer.Start(ctx, domain.WindowMatcher{PID: i + 1}, 10)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, tracer.Stop(ctx, ids[0]))

	_, err := tracer.Start(ctx, domain.WindowMatcher{PID: 999}, 10)
	require.NoError(t, err)
}

func TestWindowTracer_MatchesByID(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	id, err := tracer.Start(ctx, domain.WindowMatcher{ID: 42}, 10)
	require.NoError(t, err)

	matches := tracer.Matches(42, 0, "", "", "")
	require.Equal(t, []string{id}, matches)

	none := tracer.Matches(43, 0, "", "", "")
	require.Empty(t, none)
}

func TestWindowTracer_MatchesByClassRegex(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	id, err := tracer.Start(ctx, domain.WindowMatcher{ClassRegex: "^Firefox$"}, 10)
	require.NoError(t, err)

	matches := tracer.Matches(1, 100, "", "Firefox", "some title")
	require.Equal(t, []string{id}, matches)

	none := tracer.Matches(1, 100, "", "Chromium", "some title")
	require.Empty(t, none)
}

func TestWindowTracer_RecordUnknownSessionErrors(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	err := tracer.Record(ctx, "not-a-real-trace", domain.TraceEvent{Type: "focus"})
	require.Error(t, err)
}

func TestWindowTracer_EventRingTrimsToMaxEvents(t *testing.T) {
	ctx := context.Background()
	tracer := newTestTracer(t)

	id, err := tracer.Start(ctx, domain.WindowMatcher{PID: 1}, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, tracer.Record(ctx, id, domain.TraceEvent{Type: "tick"}))
	}

	session, ok := tracer.Get(id)
	require.True(t, ok)
	require.Len(t, session.Events, 3)
}
