package rpc

import (
	"context"
	"encoding/json"

	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/dispatcher"
	"github.com/vpittamp/i3pm-daemon/internal/scratchpad"
	"github.com/vpittamp/i3pm-daemon/internal/settings"
	"github.com/vpittamp/i3pm-daemon/internal/telemetry"
)

// Deps wires the RPC handler to the rest of the running daemon. Every
// field is required except Scratch, which is nil when the daemon is
// configured without a scratchpad terminal.
type Deps struct {
	Dispatcher *dispatcher.Dispatcher
	Store      *configstore.Store
	Telemetry  *telemetry.Provider
	Scratch    *scratchpad.Manager
	Settings   settings.Settings
}

// methodFunc handles one decoded JSON-RPC method call, returning its
// result or an error to translate via errkind.
type methodFunc func(ctx context.Context, h *Handler, params json.RawMessage) (any, error)

// Handler owns the method registry and the Deps every handler closes
// over.
type Handler struct {
	deps    Deps
	methods map[string]methodFunc
}

// NewHandler constructs a Handler with the full method set named in the
// control plane's method groups wired in.
func NewHandler(deps Deps) *Handler {
	h := &Handler{deps: deps}
	h.methods = map[string]methodFunc{
		"ping":                ping,
		"health_check":        healthCheck,
		"get_window_identity": getWindowIdentity,
		"get_recent_events":   getRecentEvents,
		"validate_state":      validateState,
		"notify_launch":       notifyLaunch,
		"close_all":           closeAll,

		"project.list":              projectList,
		"project.current":           projectCurrent,
		"project.switch":            projectSwitch,
		"project.create":            projectCreate,
		"project.delete":            projectDelete,
		"project.edit":              projectEdit,
		"project.list_repositories": projectListRepositories,

		"worktree.create": worktreeCreate,
		"worktree.edit":   worktreeEdit,
		"worktree.delete": worktreeDelete,

		"layout.save":    layoutSave,
		"layout.restore": layoutRestore,
		"layout.list":    layoutList,
		"layout.delete":  layoutDelete,
		"layout.export":  layoutExport,

		"trace.start":         traceStart,
		"trace.stop":          traceStop,
		"trace.list":          traceList,
		"trace.get":           traceGet,
		"trace.snapshot":      traceSnapshot,
		"trace.clear_stopped": traceClearStopped,

		"lazygit.launch": lazygitLaunch,

		"config_reload":        configReload,
		"config_validate":      configValidate,
		"config_rollback":      configRollback,
		"config_get_versions":  configGetVersions,
		"config_show":          configShow,
		"config_get_conflicts": configGetConflicts,
	}
	return h
}

// Dispatch decodes req, runs its handler, and builds the response. A
// missing id (a notification) still runs the handler — its result is
// just discarded by the caller.
func (h *Handler) Dispatch(ctx context.Context, req request) response {
	fn, ok := h.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, errUnknownMethod(req.Method))
	}
	result, err := fn(ctx, h, req.Params)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return okResponse(req.ID, result)
}

// submit routes fn through the dispatcher's single-threaded-cooperative
// goroutine so its side effects serialize with WM event handling.
func (h *Handler) submit(ctx context.Context, fn func(*dispatcher.Dispatcher) (any, error)) (any, error) {
	return h.deps.Dispatcher.Submit(ctx, fn)
}
