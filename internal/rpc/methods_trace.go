package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/dispatcher"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
	"github.com/vpittamp/i3pm-daemon/internal/log"
)

func requireTelemetry(h *Handler) error {
	if h.deps.Telemetry == nil {
		return errkind.New(errkind.Invariant, "telemetry is not configured")
	}
	return nil
}

type traceStartParams struct {
	Matcher   domain.WindowMatcher `json:"matcher"`
	MaxEvents int                  `json:"max_events"`
}

func traceStart(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if err := requireTelemetry(h); err != nil {
		return nil, err
	}
	var p traceStartParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := h.deps.Telemetry.WindowTracer.Start(ctx, p.Matcher, p.MaxEvents)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invariant, "starting trace", err)
	}
	return map[string]string{"trace_id": id}, nil
}

type traceIDParams struct {
	TraceID string `json:"trace_id"`
}

func traceStop(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if err := requireTelemetry(h); err != nil {
		return nil, err
	}
	var p traceIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.deps.Telemetry.WindowTracer.Stop(ctx, p.TraceID); err != nil {
		return nil, errkind.Wrap(errkind.NotFound, "stopping trace", err)
	}
	return map[string]bool{"stopped": true}, nil
}

func traceList(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if err := requireTelemetry(h); err != nil {
		return nil, err
	}
	return h.deps.Telemetry.WindowTracer.List(), nil
}

func traceGet(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if err := requireTelemetry(h); err != nil {
		return nil, err
	}
	var p traceIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	session, ok := h.deps.Telemetry.WindowTracer.Get(p.TraceID)
	if !ok {
		return nil, errkind.New(errkind.NotFound, "no trace session "+p.TraceID)
	}
	return session, nil
}

type traceSnapshotParams struct {
	TraceID  string `json:"trace_id"`
	WindowID int64  `json:"window_id"`
}

// traceSnapshot captures the tracked window's current state as one
// TraceEvent appended to an existing session — used to record a manual
// checkpoint between the automatic events a trace session otherwise only
// gets from dispatcher-observed window changes.
func traceSnapshot(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if err := requireTelemetry(h); err != nil {
		return nil, err
	}
	var p traceSnapshotParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		w, ok := d.Window(p.WindowID)
		if !ok {
			return nil, errkind.New(errkind.NotFound, "no tracked window with that id")
		}
		ev := domain.TraceEvent{
			Timestamp: time.Now(),
			Type:      "snapshot",
			After: map[string]string{
				"class":        w.Class,
				"title":        w.Title,
				"workspace":    fmt.Sprintf("%d", w.Workspace),
				"project_name": w.ProjectName,
				"scope":        string(w.Scope),
				"hidden":       fmt.Sprintf("%t", w.Hidden),
			},
		}
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	ev := result.(domain.TraceEvent)
	if err := h.deps.Telemetry.WindowTracer.Record(ctx, p.TraceID, ev); err != nil {
		return nil, errkind.Wrap(errkind.NotFound, "recording snapshot", err)
	}
	return ev, nil
}

func traceClearStopped(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if err := requireTelemetry(h); err != nil {
		return nil, err
	}
	n, err := h.deps.Telemetry.WindowTracer.ClearStopped(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{"cleared": n}, nil
}

type lazygitLaunchParams struct {
	WorktreePath string   `json:"worktree_path"`
	Flags        []string `json:"flags"`
}

// lazygitLaunch spawns `lazygit` rooted at worktree_path as a detached
// background process, mirroring scratchpad.Manager.Launch's spawn idiom
// (cmd.Dir, nil std streams, a reaping goroutine) without needing to wait
// for or correlate a window.
func lazygitLaunch(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p lazygitLaunchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.WorktreePath == "" {
		return nil, errkind.New(errkind.Invariant, "worktree_path is required")
	}

	args := append([]string{}, p.Flags...)
	cmd := exec.Command("lazygit", args...)
	cmd.Dir = p.WorktreePath
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, errkind.Wrap(errkind.Invariant, "spawning lazygit", err)
	}
	pid := cmd.Process.Pid
	log.SafeGo("lazygit-reap", func() { _ = cmd.Wait() })

	return map[string]any{
		"pid":     pid,
		"command": cmd.String(),
	}, nil
}
