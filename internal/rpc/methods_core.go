package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/dispatcher"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
	"github.com/vpittamp/i3pm-daemon/internal/telemetry"
)

func ping(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	return map[string]string{"status": "ok"}, nil
}

func healthCheck(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if h.deps.Telemetry == nil {
		return telemetry.Snapshot{}, nil
	}
	return h.deps.Telemetry.Health.Snapshot(), nil
}

type windowIdentityParams struct {
	WindowID int64 `json:"window_id"`
}

// windowIdentity is the full diagnostic bundle the `get_window_identity`
// method returns: the tracked window's current state plus any trace
// sessions whose matcher currently selects it.
type windowIdentity struct {
	Window   *domain.TrackedWindow `json:"window"`
	TraceIDs []string              `json:"trace_ids,omitempty"`
}

func getWindowIdentity(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p windowIdentityParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		w, ok := d.Window(p.WindowID)
		if !ok {
			return nil, errkind.New(errkind.NotFound, "no tracked window with that id")
		}
		var traceIDs []string
		if h.deps.Telemetry != nil {
			traceIDs = h.deps.Telemetry.WindowTracer.Matches(w.ID, w.PID, w.AppName, w.Class, w.Title)
		}
		return windowIdentity{Window: w, TraceIDs: traceIDs}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type recentEventsParams struct {
	Limit     int    `json:"limit"`
	EventType string `json:"event_type"`
}

func getRecentEvents(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p recentEventsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 500 {
		return nil, errkind.New(errkind.Invariant, "limit must be between 1 and 500")
	}
	if h.deps.Telemetry == nil {
		return []telemetry.Event{}, nil
	}
	return h.deps.Telemetry.Events.Recent(ctx, telemetry.Filter{Kind: p.EventType, Limit: p.Limit})
}

// stateValidation is the `validate_state` result: window ids tracked by
// the daemon but absent from a fresh WM tree walk, and vice versa.
type stateValidation struct {
	Missing []int64 `json:"missing"`
	Extra   []int64 `json:"extra"`
	Valid   bool    `json:"valid"`
}

func validateState(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		missing, extra, err := d.ValidateState(ctx)
		if err != nil {
			return nil, err
		}
		return stateValidation{Missing: missing, Extra: extra, Valid: len(missing) == 0 && len(extra) == 0}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type notifyLaunchParams struct {
	AppName          string `json:"app_name"`
	ProjectName      string `json:"project_name"`
	ProjectDirectory string `json:"project_directory"`
	LauncherPID      int    `json:"launcher_pid"`
	WorkspaceNumber  int    `json:"workspace_number"`
	ExpectedClass    string `json:"expected_class"`
}

func notifyLaunch(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p notifyLaunchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AppName == "" || p.ExpectedClass == "" {
		return nil, errkind.New(errkind.Invariant, "app_name and expected_class are required")
	}

	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		id := d.NotifyLaunch(domain.PendingLaunch{
			AppName:          p.AppName,
			ProjectName:      p.ProjectName,
			ProjectDirectory: p.ProjectDirectory,
			LauncherPID:      p.LauncherPID,
			WorkspaceNumber:  p.WorkspaceNumber,
			ExpectedClass:    p.ExpectedClass,
			Timestamp:        time.Now(),
		})
		return map[string]string{"launch_id": id}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type closeAllParams struct {
	Project string `json:"project"`
	Force   bool   `json:"force"`
}

func closeAll(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p closeAllParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		n, err := d.CloseAll(ctx, p.Project, p.Force)
		if err != nil {
			return nil, err
		}
		return map[string]int{"closed": n}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
