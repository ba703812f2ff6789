// Package workspace implements the Workspace Assigner: a 4-tier (plus
// fallback) priority chain that picks a workspace number for a newly
// created window.
package workspace

import (
	"regexp"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/classify/identity"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/log"
	"github.com/vpittamp/i3pm-daemon/internal/procenv"
)

// MinWorkspace and MaxWorkspace bound a valid target; anything outside
// falls back to the current workspace.
const (
	MinWorkspace = 1
	MaxWorkspace = 10
)

// Tier names the stage of the assignment chain that produced a result, for
// per-tier counters.
type Tier string

const (
	TierAppHook      Tier = "app_hook"
	TierEnvVar       Tier = "env_var"
	TierAppNameReg   Tier = "app_name_registry"
	TierClassReg     Tier = "class_registry"
	TierFallback     Tier = "fallback"
)

// Result is the outcome of an assignment, including which tier resolved it
// and (for the VS Code title hook) a derived project override.
type Result struct {
	Workspace       int
	Tier            Tier
	ProjectOverride string // non-empty only when a title-parsing hook derives one
}

// Request bundles everything Assign needs about the new window and the
// currently loaded registry/state.
type Request struct {
	Class             string
	Title             string
	PID               int
	CurrentWorkspace  int
	AppName           string // from I3PM_APP_NAME, if already known
	Registry          map[string]domain.AppRegistryEntry // keyed by app name
	RegistryByClass   map[string]domain.AppRegistryEntry // keyed by expected class, for tier 4
}

// vscodeTitlePattern extracts the workspace-folder name VS Code shows in
// its title bar, e.g. "Code - nixos - main.go" -> "nixos".
var vscodeTitlePattern = regexp.MustCompile(`(?:Code - )?([^-]+) -`)

// appSpecificHook runs tier-1 app-specific title parsing. Only VS Code is
// grounded in the original source today; other classes fall through.
func appSpecificHook(req Request) (Result, bool) {
	if req.Class != "Code" {
		return Result{}, false
	}
	m := vscodeTitlePattern.FindStringSubmatch(req.Title)
	if m == nil {
		return Result{}, false
	}
	project := trimSpace(m[1])
	if project == "" {
		return Result{}, false
	}
	entry, ok := req.Registry["vscode"]
	if !ok || entry.PreferredWorkspace == nil {
		return Result{}, false
	}
	return Result{Workspace: *entry.PreferredWorkspace, Tier: TierAppHook, ProjectOverride: project}, true
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

// Assign runs the 4-tier-plus-fallback chain, issuing per-tier timing
// warnings (target 100ms) via the caller-supplied recordLatency hook.
func Assign(req Request, recordLatency func(tier Tier, d time.Duration)) Result {
	start := time.Now()
	result := assign(req)
	if recordLatency != nil {
		recordLatency(result.Tier, time.Since(start))
	}
	if !validWorkspace(result.Workspace) {
		return Result{Workspace: req.CurrentWorkspace, Tier: TierFallback}
	}
	return result
}

func assign(req Request) Result {
	if r, ok := appSpecificHook(req); ok {
		return r
	}

	env := procenv.ReadWithAncestry(req.PID, 3)
	if target, ok := env["I3PM_TARGET_WORKSPACE"]; ok {
		if n, ok := parseInt(target); ok && validWorkspace(n) {
			return Result{Workspace: n, Tier: TierEnvVar}
		}
	}

	appName := req.AppName
	if appName == "" {
		appName = env["I3PM_APP_NAME"]
	}
	if appName != "" {
		if entry, ok := req.Registry[appName]; ok && entry.PreferredWorkspace != nil {
			return Result{Workspace: *entry.PreferredWorkspace, Tier: TierAppNameReg}
		}
	}

	for expectedClass, entry := range req.RegistryByClass {
		matched, _ := identity.Match(expectedClass, req.Class, "", entry.Aliases)
		if matched && entry.PreferredWorkspace != nil {
			return Result{Workspace: *entry.PreferredWorkspace, Tier: TierClassReg}
		}
	}

	return Result{Workspace: req.CurrentWorkspace, Tier: TierFallback}
}

func validWorkspace(n int) bool {
	return n >= MinWorkspace && n <= MaxWorkspace
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// LogSlowTier warns when a tier's latency exceeds twice the internal
// target of 100ms.
func LogSlowTier(tier Tier, d time.Duration) {
	const target = 100 * time.Millisecond
	if d > 2*target {
		log.Warn(log.CatWorkspace, "workspace assignment tier slow", "tier", tier, "duration", d)
	}
}
