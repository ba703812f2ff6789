// Package recovery implements the daemon's startup and on-demand
// self-healing pass: it makes the on-disk config directory and the
// in-memory window index consistent again after a crash, a hand-edited
// config file, or a missed event.
//
// Every auto-fix here is written as an idempotent "ensure X" routine: it
// is always safe to call ValidateAll a second time with no intervening
// state change and see Errors come back empty, because each fix either
// no-ops when its target condition already holds or replaces a broken
// file with a fresh valid one that the next pass will simply confirm.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
	"github.com/vpittamp/i3pm-daemon/internal/mark"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
)

// Deps wires ValidateAll to the rest of the running daemon without
// importing dispatcher or telemetry directly — every cross-package touch
// point is a plain func value, the same injection idiom workspace.Assign
// uses for its latency recorder.
type Deps struct {
	Store *configstore.Store

	// WMConnected reports the current WM IPC connection state (step 3).
	// Nil is treated as "unknown", which is reported as a warning rather
	// than an error since the reconnect loop owns actually fixing it.
	WMConnected func() bool

	// Tree fetches the current window tree for the rebuild walk (step 4).
	// Nil skips step 4 entirely (e.g. the standalone `validate` CLI
	// command, which has no live WM connection to rebuild from).
	Tree func(ctx context.Context) (*wm.Node, error)

	// IndexWindow is invoked once per live window node discovered during
	// the tree walk, together with the unified mark parsed off it (ok is
	// false when the window carries no parseable mark). The dispatcher
	// wires this to its own TrackedWindow index.
	IndexWindow func(n *wm.Node, parsed mark.Parsed, ok bool)

	// EventBufferSize reports the telemetry event ring's current size and
	// its configured capacity (step 6). Nil skips the check.
	EventBufferSize func() (size, capacity int)
}

// Result is the outcome of one ValidateAll pass.
type Result struct {
	IsValid   bool      `json:"is_valid"`
	Errors    []string  `json:"errors,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Fixes     []string  `json:"fixes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExitCode maps Result to the three-level exit status the `validate` CLI
// command reports: 0 healthy, 1 warnings-only, 2 errors present.
func (r Result) ExitCode() int {
	switch {
	case len(r.Errors) > 0:
		return 2
	case len(r.Warnings) > 0:
		return 1
	default:
		return 0
	}
}

// ValidateAll runs the six recovery steps in order, collecting errors,
// warnings, and the fixes it applied along the way. It never returns a Go
// error itself — every failure mode it can hit is recorded in the
// returned Result instead, since a recovery pass that can itself fail
// defeats the point of calling it from a crash-recovery path.
func ValidateAll(ctx context.Context, deps Deps) Result {
	r := Result{Timestamp: time.Now()}

	ensureDirs(deps, &r)
	validateConfigs(deps, &r)
	probeWM(deps, &r)
	rebuildIndex(ctx, deps, &r)
	reportOrphanedMarks(deps, &r)
	validateEventBuffer(deps, &r)

	r.IsValid = len(r.Errors) == 0
	return r
}

// ensureDirs is step 1.
func ensureDirs(deps Deps, r *Result) {
	if deps.Store == nil {
		return
	}
	if err := deps.Store.EnsureDirs(); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("ensuring config/data directories: %v", err))
		return
	}
	r.Fixes = append(r.Fixes, "ensured config and data directories exist")
}

// validateConfigs is step 2: parse every known JSON config, backing up and
// resetting any that fail to parse.
func validateConfigs(deps Deps, r *Result) {
	if deps.Store == nil {
		return
	}

	check := func(name string, load func() error, reset func() error) {
		err := load()
		if err == nil {
			return
		}
		if errkind.As(err) != errkind.Parse {
			// Missing files are not corruption; every Load* treats
			// absence as a valid empty default already.
			return
		}
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", name, err))
		backup, berr := backupBroken(deps.Store.ConfigDir, name)
		if berr != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: backing up broken file: %v", name, berr))
			return
		}
		if err := reset(); err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: rewriting default: %v", name, err))
			return
		}
		r.Fixes = append(r.Fixes, fmt.Sprintf("%s: backed up to %s and reset to default", name, backup))
	}

	check("active-project.json",
		func() error { _, err := deps.Store.LoadActiveProject(); return err },
		func() error { return deps.Store.SaveActiveProject(domain.ActiveProjectState{}) },
	)
	check("app-classes.json",
		func() error { _, err := deps.Store.LoadAppClasses(); return err },
		func() error { return writeMinimalJSON(deps.Store.ConfigDir, "app-classes.json", map[string]any{
			"scoped_classes": []string{}, "global_classes": []string{}, "class_patterns": []string{},
		}) },
	)
	check("window-rules.json",
		func() error { _, err := deps.Store.LoadWindowRules(); return err },
		func() error { return writeMinimalJSON(deps.Store.ConfigDir, "window-rules.json", []string{}) },
	)
	check("discovery-config.json",
		func() error { _, _, err := deps.Store.LoadRegistry(); return err },
		func() error {
			return writeMinimalJSON(deps.Store.ConfigDir, "discovery-config.json", map[string]any{"apps": []string{}})
		},
	)

	if deps.Store.Repos != nil {
		if _, err := deps.Store.Repos.Load(context.Background()); err != nil {
			switch errkind.As(err) {
			case errkind.NotFound:
				r.Warnings = append(r.Warnings, "repos.json: not present")
			case errkind.Parse:
				r.Errors = append(r.Errors, fmt.Sprintf("repos.json: %v", err))
				backup, berr := backupBroken(deps.Store.ConfigDir, "repos.json")
				if berr != nil {
					r.Errors = append(r.Errors, fmt.Sprintf("repos.json: backing up broken file: %v", berr))
					break
				}
				if werr := writeMinimalJSON(deps.Store.ConfigDir, "repos.json", configstore.ReposFile{Version: 1}); werr != nil {
					r.Errors = append(r.Errors, fmt.Sprintf("repos.json: rewriting default: %v", werr))
					break
				}
				deps.Store.Repos.Invalidate(context.Background())
				r.Fixes = append(r.Fixes, fmt.Sprintf("repos.json: backed up to %s and reset to default", backup))
			}
		}
	}
}

// probeWM is step 3. Reconnection itself is the WM client's own job (4.A's
// reconnect loop); ValidateAll only reports the current state.
func probeWM(deps Deps, r *Result) {
	if deps.WMConnected == nil {
		return
	}
	if !deps.WMConnected() {
		r.Warnings = append(r.Warnings, "window manager IPC is disconnected; reconnect loop is active")
	}
}

// rebuildIndex is step 4: walk the live tree and hand every window node,
// plus its parsed unified mark (if any), to deps.IndexWindow.
func rebuildIndex(ctx context.Context, deps Deps, r *Result) {
	if deps.Tree == nil || deps.IndexWindow == nil {
		return
	}
	tree, err := deps.Tree(ctx)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("fetching window tree: %v", err))
		return
	}
	if tree == nil {
		return
	}

	count := 0
	tree.Walk(func(n *wm.Node) {
		if n.WindowProps == nil {
			return
		}
		count++
		parsed, ok := firstParseableMark(n.Marks)
		deps.IndexWindow(n, parsed, ok)
	})
	r.Fixes = append(r.Fixes, fmt.Sprintf("rebuilt window index from tree walk (%d windows)", count))
}

func firstParseableMark(marks []string) (mark.Parsed, bool) {
	for _, m := range marks {
		if p, ok := mark.Parse(m); ok {
			return p, true
		}
	}
	return mark.Parsed{}, false
}

// reportOrphanedMarks is step 5: a mark naming a project that no longer
// has a config file is reported, never auto-fixed — deleting the window
// or fabricating a project file are both more surprising than a warning.
func reportOrphanedMarks(deps Deps, r *Result) {
	if deps.Store == nil || deps.Tree == nil {
		return
	}
	known, err := deps.Store.ListProjects()
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("listing projects: %v", err))
		return
	}
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	tree, err := deps.Tree(context.Background())
	if err != nil || tree == nil {
		return
	}

	seen := map[string]bool{}
	tree.Walk(func(n *wm.Node) {
		if n.WindowProps == nil {
			return
		}
		parsed, ok := firstParseableMark(n.Marks)
		if !ok || parsed.Project == "" || knownSet[parsed.Project] || seen[parsed.Project] {
			return
		}
		seen[parsed.Project] = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("window marked for unknown project %q", parsed.Project))
	})
}

// validateEventBuffer is step 6.
func validateEventBuffer(deps Deps, r *Result) {
	if deps.EventBufferSize == nil {
		return
	}
	size, capacity := deps.EventBufferSize()
	if size < 0 {
		r.Errors = append(r.Errors, "event buffer reported a negative size")
		return
	}
	if capacity > 0 && size > capacity {
		r.Errors = append(r.Errors, fmt.Sprintf("event buffer size %d exceeds capacity %d", size, capacity))
	}
}

// backupBroken renames configDir/name to a timestamped sibling so the
// bad bytes aren't lost, and returns the backup's path.
func backupBroken(configDir, name string) (string, error) {
	src := filepath.Join(configDir, name)
	dst := fmt.Sprintf("%s.corrupt-%d", src, time.Now().UnixNano())
	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return dst, nil
		}
		return "", err
	}
	return dst, nil
}

func writeMinimalJSON(configDir, name string, v any) error {
	path := filepath.Join(configDir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
