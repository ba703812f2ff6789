// Package dispatcher implements the daemon's single-threaded-cooperative
// event loop: the one goroutine that owns the TrackedWindow index, the
// active-project pointer, and every side effect reacting to a WM event or
// an inbound JSON-RPC command. No mutex guards this state — by
// construction it is only ever touched from Run's select loop.
package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/classify"
	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
	"github.com/vpittamp/i3pm-daemon/internal/eventbus"
	"github.com/vpittamp/i3pm-daemon/internal/launch"
	"github.com/vpittamp/i3pm-daemon/internal/log"
	"github.com/vpittamp/i3pm-daemon/internal/mark"
	"github.com/vpittamp/i3pm-daemon/internal/procenv"
	"github.com/vpittamp/i3pm-daemon/internal/scratchpad"
	"github.com/vpittamp/i3pm-daemon/internal/telemetry"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
	"github.com/vpittamp/i3pm-daemon/internal/workspace"
)

// WMClient is the slice of internal/wm.Client the dispatcher needs —
// narrowed to an interface so tests can drive the event loop against a
// fake tree/command log instead of a real i3/Sway socket.
type WMClient interface {
	Subscribe(ctx context.Context, kinds ...wm.EventKind) (<-chan wm.Event, error)
	Command(ctx context.Context, payload string) ([]wm.CommandReply, error)
	GetTree(ctx context.Context) (*wm.Node, error)
	Connected() bool
}

// job is a unit of work submitted from outside the dispatcher goroutine
// (the RPC layer) to run serially alongside WM event handling.
type job struct {
	fn     func(*Dispatcher) (any, error)
	result chan<- jobResult
}

type jobResult struct {
	value any
	err   error
}

// Config bundles the components Dispatcher wires together. Every field is
// already fully constructed by the caller (cmd/daemon.go).
type Config struct {
	WM        WMClient
	Store     *configstore.Store
	Launches  *launch.Registry
	Scratch   *scratchpad.Manager
	Telemetry *telemetry.Provider
	Bus       *eventbus.Bus
}

// Dispatcher is the daemon's event loop and sole owner of mutable state.
type Dispatcher struct {
	wm        WMClient
	store     *configstore.Store
	launches  *launch.Registry
	scratch   *scratchpad.Manager
	telemetry *telemetry.Provider
	bus       *eventbus.Bus

	windows map[int64]*domain.TrackedWindow
	active  domain.ActiveProjectState

	appClasses      configstore.AppClasses
	windowRules     []domain.WindowRule
	registryByName  map[string]domain.AppRegistryEntry
	registryByClass map[string]domain.AppRegistryEntry

	currentWorkspace int

	jobs chan job
}

// New constructs a Dispatcher. Call ReloadConfig once before Run to
// populate the classification/registry caches (cmd/daemon.go does this
// after recovery.ValidateAll, which does not load them itself).
func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		wm:              cfg.WM,
		store:           cfg.Store,
		launches:        cfg.Launches,
		scratch:         cfg.Scratch,
		telemetry:       cfg.Telemetry,
		bus:             cfg.Bus,
		windows:         make(map[int64]*domain.TrackedWindow),
		registryByName:  map[string]domain.AppRegistryEntry{},
		registryByClass: map[string]domain.AppRegistryEntry{},
		jobs:            make(chan job, 32),
	}
}

// ReloadConfig re-reads active-project.json, app-classes.json,
// window-rules.json, and discovery-config.json from the Config Store. It
// is safe to call from Run's goroutine only (RPC's config_reload method
// goes through Submit).
func (d *Dispatcher) ReloadConfig() error {
	active, err := d.store.LoadActiveProject()
	if err != nil {
		return err
	}
	appClasses, err := d.store.LoadAppClasses()
	if err != nil {
		return err
	}
	rules, err := d.store.LoadWindowRules()
	if err != nil {
		return err
	}
	byName, byClass, err := d.store.LoadRegistry()
	if err != nil {
		return err
	}

	d.active = active
	d.appClasses = appClasses
	d.windowRules = rules
	d.registryByName = byName
	d.registryByClass = byClass
	return nil
}

// Submit runs fn on the dispatcher goroutine and blocks for its result —
// the mechanism every JSON-RPC handler uses to serialize its side effects
// with WM event handling (spec §5, §4.J).
func (d *Dispatcher) Submit(ctx context.Context, fn func(*Dispatcher) (any, error)) (any, error) {
	result := make(chan jobResult, 1)
	select {
	case d.jobs <- job{fn: fn, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run is the daemon's central select loop: WM events, submitted jobs, the
// health probe, and the launch-registry expirer all funnel through here so
// no two handlers ever run concurrently.
func (d *Dispatcher) Run(ctx context.Context) error {
	events, err := d.wm.Subscribe(ctx, wm.EventWindow, wm.EventWorkspace, wm.EventOutput, wm.EventTick)
	if err != nil {
		return fmt.Errorf("dispatcher: subscribing to wm events: %w", err)
	}

	healthTick := time.NewTicker(5 * time.Second)
	defer healthTick.Stop()
	expireTick := time.NewTicker(1 * time.Second)
	defer expireTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.handle(ctx, ev)

		case j := <-d.jobs:
			v, err := j.fn(d)
			j.result <- jobResult{value: v, err: err}

		case <-healthTick.C:
			d.probeHealth()

		case <-expireTick.C:
			d.handleLaunchExpiry()
		}
	}
}

func (d *Dispatcher) probeHealth() {
	if d.telemetry == nil {
		return
	}
	d.telemetry.Health.SetWMConnected(d.wm.Connected())
	d.telemetry.Health.SetTrackedWindows(len(d.windows))
	if d.active.ProjectName != nil {
		d.telemetry.Health.SetActiveProject(*d.active.ProjectName)
	} else {
		d.telemetry.Health.SetActiveProject("")
	}
	stats := d.launches.Stats()
	d.telemetry.Health.SetLaunchRates(stats.MatchRate(), stats.ExpirationRate())
}

func (d *Dispatcher) handleLaunchExpiry() {
	n := d.launches.CleanupExpired()
	if n > 0 {
		log.Debug(log.CatLaunch, "expired pending launches", "count", n)
	}
}

// handle dispatches one WM event to its per-kind handler, matching the
// transition table: window events switch further on Change, everything
// else has exactly one handler.
func (d *Dispatcher) handle(ctx context.Context, ev wm.Event) {
	stop := d.timeOp("event_process")
	defer stop()

	switch ev.Kind {
	case wm.EventWindow:
		d.handleWindowEvent(ctx, ev)
	case wm.EventWorkspace:
		d.handleWorkspaceFocus(ev)
	case wm.EventOutput:
		d.handleOutputChange(ev)
	case wm.EventTick:
		d.handleTick(ev)
	}

	if d.bus != nil {
		d.bus.Publish(eventbus.DaemonEvent{
			Kind: eventbus.KindWindowEvent,
			Detail: map[string]any{
				"wm_kind": string(ev.Kind),
				"change":  ev.Change,
			},
		})
	}
}

func (d *Dispatcher) timeOp(name string) func() {
	if d.telemetry == nil {
		return func() {}
	}
	return d.telemetry.Performance.Time(name)
}

func (d *Dispatcher) handleWindowEvent(ctx context.Context, ev wm.Event) {
	switch ev.Change {
	case "new":
		d.handleWindowNew(ctx, ev.Container)
	case "close":
		d.handleWindowClose(ev.Container)
	case "focus":
		d.handleWindowFocus(ev.Container)
	case "title":
		d.handleWindowTitle(ctx, ev.Container)
	case "move", "floating", "fullscreen_mode", "urgent":
		d.handleWindowGeneric(ev.Container)
	case "mark":
		d.handleMarkChanged(ev.Container)
	}
}

// classifyContext builds a classify.Context from the dispatcher's current
// config caches, scoping ActiveScopedClasses to the active project only.
func (d *Dispatcher) classifyContext() classify.Context {
	var scoped []string
	if d.active.ProjectName != nil {
		p, err := d.store.LoadProject(*d.active.ProjectName)
		if err == nil {
			scoped = p.ScopedClasses
		}
	}
	return classify.Context{
		ActiveScopedClasses: scoped,
		WindowRules:         d.windowRules,
		AppPatterns:         d.appClasses.Patterns,
		AppScopedClasses:    d.appClasses.ScopedClasses,
		AppGlobalClasses:    d.appClasses.GlobalClasses,
	}
}

func windowProps(n *wm.Node) (class, instance, title string) {
	if n == nil || n.WindowProps == nil {
		return "", "", ""
	}
	return n.WindowProps.Class, n.WindowProps.Instance, n.WindowProps.Title
}

// handleWindowNew implements spec.md §4.H's window::new row: read launcher
// env, try launch correlation first, fall back to classification, assign a
// workspace, apply scratchpad-vs-move visibility, and inject the unified
// mark.
func (d *Dispatcher) handleWindowNew(ctx context.Context, n *wm.Node) {
	if n == nil {
		return
	}
	class, instance, title := windowProps(n)

	env := procenv.ReadWithAncestry(n.PID, 3)

	var (
		scope       domain.Scope
		projectName string
		appName     = env["I3PM_APP_NAME"]
	)

	aliasesByApp := make(map[string][]string, len(d.registryByName))
	for name, entry := range d.registryByName {
		aliasesByApp[name] = entry.Aliases
	}

	if pending, ok := d.launches.FindMatch(domain.LaunchWindowInfo{
		WindowID:    n.ID,
		WindowClass: class,
		WindowPID:   n.PID,
		Timestamp:   time.Now(),
	}, aliasesByApp); ok {
		scope = domain.ScopeScoped
		if pending.ProjectName == "" {
			scope = domain.ScopeGlobal
		}
		projectName = pending.ProjectName
		appName = pending.AppName
	} else {
		classification := classify.Classify(class, title, d.classifyContext())
		scope = classification.Scope
		if scope == domain.ScopeScoped && d.active.ProjectName != nil {
			projectName = *d.active.ProjectName
		}
	}

	wsResult := workspace.Assign(workspace.Request{
		Class:            class,
		Title:            title,
		PID:              n.PID,
		CurrentWorkspace: d.currentWorkspace,
		AppName:          appName,
		Registry:         d.registryByName,
		RegistryByClass:  d.registryByClass,
	}, workspace.LogSlowTier)
	if wsResult.ProjectOverride != "" {
		projectName = wsResult.ProjectOverride
	}

	hideToScratchpad := scope == domain.ScopeScoped &&
		(d.active.ProjectName == nil || *d.active.ProjectName != projectName)

	if hideToScratchpad {
		_, _ = d.wm.Command(ctx, fmt.Sprintf("[con_id=%d] move scratchpad", n.ID))
	} else if wsResult.Workspace > 0 {
		_, _ = d.wm.Command(ctx, fmt.Sprintf("[con_id=%d] move to workspace number %d", n.ID, wsResult.Workspace))
	}

	markValue := mark.Build(scope, appName, projectName, n.ID)
	_, _ = d.wm.Command(ctx, fmt.Sprintf("[con_id=%d] mark --add %q", n.ID, markValue))

	d.windows[n.ID] = &domain.TrackedWindow{
		ID:          n.ID,
		Class:       class,
		Instance:    instance,
		Title:       title,
		PID:         n.PID,
		Workspace:   wsResult.Workspace,
		Floating:    n.Floating != "",
		Hidden:      hideToScratchpad,
		Focused:     n.Focused,
		Marks:       append([]string{markValue}, n.Marks...),
		Scope:       scope,
		ProjectName: projectName,
		AppName:     appName,
		EnvVars:     env,
	}
}

func (d *Dispatcher) handleWindowClose(n *wm.Node) {
	if n == nil {
		return
	}
	delete(d.windows, n.ID)
	if _, ok := d.scratch.ByWindowID(n.ID); ok {
		d.scratch.RemoveByWindowID(n.ID)
	}
}

func (d *Dispatcher) handleWindowFocus(n *wm.Node) {
	if n == nil {
		return
	}
	for id, w := range d.windows {
		w.Focused = id == n.ID
	}
}

func (d *Dispatcher) handleWindowTitle(ctx context.Context, n *wm.Node) {
	if n == nil {
		return
	}
	w, ok := d.windows[n.ID]
	if !ok {
		return
	}
	_, _, title := windowProps(n)
	w.Title = title

	if w.Class != "Code" {
		return
	}
	result := workspace.Assign(workspace.Request{
		Class:            w.Class,
		Title:            title,
		PID:              w.PID,
		CurrentWorkspace: d.currentWorkspace,
		AppName:          w.AppName,
		Registry:         d.registryByName,
		RegistryByClass:  d.registryByClass,
	}, workspace.LogSlowTier)
	if result.ProjectOverride != "" && result.ProjectOverride != w.ProjectName {
		w.ProjectName = result.ProjectOverride
		d.recomputeVisibility(ctx, w)
	}
}

func (d *Dispatcher) handleWindowGeneric(n *wm.Node) {
	if n == nil {
		return
	}
	w, ok := d.windows[n.ID]
	if !ok {
		return
	}
	w.Floating = n.Floating != ""
}

func (d *Dispatcher) handleMarkChanged(n *wm.Node) {
	if n == nil {
		return
	}
	w, ok := d.windows[n.ID]
	if !ok {
		return
	}
	w.Marks = n.Marks
	for _, m := range n.Marks {
		if parsed, ok := mark.Parse(m); ok {
			w.Scope = parsed.Scope
			w.ProjectName = parsed.Project
			w.AppName = parsed.App
			break
		}
	}
}

func (d *Dispatcher) handleWorkspaceFocus(ev wm.Event) {
	if ev.Current != nil && ev.Current.Num != nil {
		d.currentWorkspace = *ev.Current.Num
	}
}

func (d *Dispatcher) handleOutputChange(ev wm.Event) {
	log.Debug(log.CatWatcher, "output configuration changed")
}

func (d *Dispatcher) handleTick(ev wm.Event) {}

// recomputeVisibility applies a single window's scratchpad-vs-move
// decision given its current Scope/ProjectName, without touching any other
// tracked window — used when a per-window reclassification (the VS Code
// title hook) changes its project out from under it.
func (d *Dispatcher) recomputeVisibility(ctx context.Context, w *domain.TrackedWindow) {
	visible := w.Visible(d.active)
	if visible == !w.Hidden {
		return
	}
	if visible {
		_, _ = d.wm.Command(ctx, fmt.Sprintf("[con_id=%d] move to workspace number %d", w.ID, w.Workspace))
		w.Hidden = false
	} else {
		_, _ = d.wm.Command(ctx, fmt.Sprintf("[con_id=%d] move scratchpad", w.ID))
		w.Hidden = true
	}
}

// SwitchProject implements the control-plane `project.switch` operation:
// write the new active project atomically, then walk the TrackedWindow
// index recomputing per-window visibility. Because this only ever runs on
// the dispatcher goroutine (via Submit), no window event can interleave
// with the walk.
func (d *Dispatcher) SwitchProject(ctx context.Context, name *string) error {
	if name != nil {
		if _, err := d.store.LoadProject(*name); err != nil {
			return err
		}
	}

	newState := domain.ActiveProjectState{ProjectName: name}
	if err := d.store.SaveActiveProject(newState); err != nil {
		return err
	}
	d.active = newState

	for _, w := range d.windows {
		if w.Scope != domain.ScopeScoped {
			continue
		}
		d.recomputeVisibility(ctx, w)
	}

	if d.bus != nil {
		detail := map[string]any{}
		if name != nil {
			detail["project"] = *name
		}
		d.bus.Publish(eventbus.DaemonEvent{Kind: eventbus.KindProjectSwitch, Detail: detail})
	}
	if d.telemetry != nil {
		d.telemetry.Health.RecordRecovery(time.Now())
	}
	return nil
}

// CurrentProject returns the currently active project name, or nil for
// global mode.
func (d *Dispatcher) CurrentProject() *string { return d.active.ProjectName }

// Windows returns a snapshot slice of every tracked window.
func (d *Dispatcher) Windows() []*domain.TrackedWindow {
	out := make([]*domain.TrackedWindow, 0, len(d.windows))
	for _, w := range d.windows {
		out = append(out, w)
	}
	return out
}

// Window looks up a single tracked window by id.
func (d *Dispatcher) Window(id int64) (*domain.TrackedWindow, bool) {
	w, ok := d.windows[id]
	return w, ok
}

// NotifyLaunch implements the `notify_launch` RPC method: record a
// PendingLaunch in the Launch Registry and return its key as the launch_id.
func (d *Dispatcher) NotifyLaunch(p domain.PendingLaunch) string {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	d.launches.Add(p)
	return p.Key()
}

// CloseAll implements the `close_all` RPC method: close every tracked
// window scoped to project (or every scoped window across all projects
// when project is empty). Without force, windows of class "Code" are
// skipped and every other matching window is closed; with force, all
// matching windows are closed. No other unsaved-state check is made.
func (d *Dispatcher) CloseAll(ctx context.Context, project string, force bool) (int, error) {
	closed := 0
	for _, w := range d.windows {
		if w.Scope != domain.ScopeScoped {
			continue
		}
		if project != "" && w.ProjectName != project {
			continue
		}
		if !force && w.Class == "Code" {
			continue
		}
		if _, err := d.wm.Command(ctx, fmt.Sprintf("[con_id=%d] kill", w.ID)); err != nil {
			return closed, err
		}
		delete(d.windows, w.ID)
		closed++
	}
	return closed, nil
}

// ValidateState compares the daemon's TrackedWindow index against a
// freshly walked WM tree, returning ids present in one but not the other —
// the `validate_state` RPC method.
func (d *Dispatcher) ValidateState(ctx context.Context) (missing, extra []int64, err error) {
	tree, err := d.wm.GetTree(ctx)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.Timeout, "fetching wm tree", err)
	}

	live := map[int64]bool{}
	tree.Walk(func(n *wm.Node) {
		if n.WindowProps != nil {
			live[n.ID] = true
		}
	})

	for id := range d.windows {
		if !live[id] {
			extra = append(extra, id)
		}
	}
	for id := range live {
		if _, ok := d.windows[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, extra, nil
}
