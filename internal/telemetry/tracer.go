package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

// maxConcurrentTraces bounds how many TraceSessions can be live at once,
// so an operator chasing several windows at once can't grow the shared
// event-log database without bound.
const maxConcurrentTraces = 10

// WindowTracer manages a bounded set of concurrent per-window trace
// sessions. Each session keeps its own in-memory event ring (via
// domain.TraceSession.Push) for the `trace.get` happy path and mirrors
// every event into the shared event-log database so sessions survive
// being queried with arbitrary SQL filters.
type WindowTracer struct {
	mu       sync.Mutex
	db       *sql.DB
	sessions map[string]*domain.TraceSession
}

// NewWindowTracer constructs a WindowTracer backed by db — the EventLog's
// database, whose schema already carries the trace_sessions/trace_events
// tables this type writes to.
func NewWindowTracer(db *sql.DB) *WindowTracer {
	return &WindowTracer{db: db, sessions: make(map[string]*domain.TraceSession)}
}

// Start begins a new trace session for matcher and returns its trace ID.
// It refuses to start past maxConcurrentTraces live sessions.
func (t *WindowTracer) Start(ctx context.Context, matcher domain.WindowMatcher, maxEvents int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.liveCountLocked() >= maxConcurrentTraces {
		return "", fmt.Errorf("telemetry: %d trace sessions already active, refusing to start another", maxConcurrentTraces)
	}
	if maxEvents <= 0 {
		maxEvents = 1000
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	session := &domain.TraceSession{
		TraceID:   id,
		Matcher:   matcher,
		MaxEvents: maxEvents,
		StartedAt: now,
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO trace_sessions
			(trace_id, matcher_id, matcher_pid, matcher_app_id, matcher_class_re, matcher_title_re, max_events, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, matcher.ID, matcher.PID, matcher.AppID, matcher.ClassRegex, matcher.TitleRegex, maxEvents, now.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("telemetry: recording trace session: %w", err)
	}

	t.sessions[id] = session
	return id, nil
}

func (t *WindowTracer) liveCountLocked() int {
	n := 0
	for _, s := range t.sessions {
		if !s.Stopped() {
			n++
		}
	}
	return n
}

// Stop ends the trace session identified by traceID, recording its stop
// time. Stopping an unknown or already-stopped session is a no-op error.
func (t *WindowTracer) Stop(ctx context.Context, traceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[traceID]
	if !ok {
		return fmt.Errorf("telemetry: no trace session %q", traceID)
	}
	if session.Stopped() {
		return fmt.Errorf("telemetry: trace session %q already stopped", traceID)
	}

	now := time.Now().UTC()
	session.StoppedAt = &now
	_, err := t.db.ExecContext(ctx, `UPDATE trace_sessions SET stopped_at = ? WHERE trace_id = ?`,
		now.Format(time.RFC3339Nano), traceID)
	if err != nil {
		return fmt.Errorf("telemetry: recording trace session stop: %w", err)
	}
	return nil
}

// Matches reports the trace IDs of every live session whose matcher
// selects the given window.
func (t *WindowTracer) Matches(id int64, pid int, appID, class, title string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for traceID, s := range t.sessions {
		if s.Stopped() {
			continue
		}
		if matchesWindow(s.Matcher, id, pid, appID, class, title) {
			out = append(out, traceID)
		}
	}
	return out
}

func matchesWindow(m domain.WindowMatcher, id int64, pid int, appID, class, title string) bool {
	if m.ID != 0 {
		return m.ID == id
	}
	if m.PID != 0 {
		return m.PID == pid
	}
	if m.AppID != "" {
		return m.AppID == appID
	}
	if m.ClassRegex != "" {
		ok, err := regexp.MatchString(m.ClassRegex, class)
		return err == nil && ok
	}
	if m.TitleRegex != "" {
		ok, err := regexp.MatchString(m.TitleRegex, title)
		return err == nil && ok
	}
	return false
}

// Record appends ev to the named session's ring and persists it to the
// event-log database, trimming older rows back down to the session's
// MaxEvents.
func (t *WindowTracer) Record(ctx context.Context, traceID string, ev domain.TraceEvent) error {
	t.mu.Lock()
	session, ok := t.sessions[traceID]
	if ok {
		session.Push(ev)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("telemetry: no trace session %q", traceID)
	}

	before, _ := json.Marshal(ev.Before)
	after, _ := json.Marshal(ev.After)
	evCtx, _ := json.Marshal(ev.Context)
	changes, _ := json.Marshal(ev.Changes)

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO trace_events (trace_id, timestamp, type, desc, before, after, context, changes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		traceID, ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.Type, ev.Desc,
		string(before), string(after), string(evCtx), string(changes))
	if err != nil {
		return fmt.Errorf("telemetry: recording trace event: %w", err)
	}

	_, err = t.db.ExecContext(ctx, `
		DELETE FROM trace_events WHERE trace_id = ? AND id NOT IN (
			SELECT id FROM trace_events WHERE trace_id = ? ORDER BY id DESC LIMIT ?
		)`, traceID, traceID, session.MaxEvents)
	if err != nil {
		return fmt.Errorf("telemetry: trimming trace events: %w", err)
	}
	return nil
}

// Get returns the in-memory view of a trace session, including its
// current event ring.
func (t *WindowTracer) Get(traceID string) (*domain.TraceSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[traceID]
	return s, ok
}

// List returns every tracked session, live or stopped.
func (t *WindowTracer) List() []*domain.TraceSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*domain.TraceSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// ClearStopped drops every stopped session from memory and the event-log
// database, returning the count removed. Live sessions are untouched.
func (t *WindowTracer) ClearStopped(ctx context.Context) (int, error) {
	t.mu.Lock()
	var stopped []string
	for id, s := range t.sessions {
		if s.Stopped() {
			stopped = append(stopped, id)
		}
	}
	for _, id := range stopped {
		delete(t.sessions, id)
	}
	t.mu.Unlock()

	for _, id := range stopped {
		if _, err := t.db.ExecContext(ctx, `DELETE FROM trace_events WHERE trace_id = ?`, id); err != nil {
			return 0, fmt.Errorf("telemetry: clearing trace events for %q: %w", id, err)
		}
		if _, err := t.db.ExecContext(ctx, `DELETE FROM trace_sessions WHERE trace_id = ?`, id); err != nil {
			return 0, fmt.Errorf("telemetry: clearing trace session %q: %w", id, err)
		}
	}
	return len(stopped), nil
}
