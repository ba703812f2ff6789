// Package mark implements the unified window-mark codec: a single
// colon-delimited string encoding a window's classification durably on the
// window itself, so the daemon can recover {scope, project, app} for any
// window purely by re-reading its marks.
package mark

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

// Parsed is the decoded form of a unified mark.
type Parsed struct {
	Scope     domain.Scope
	App       string
	Project   string
	WindowID  int64
}

// Build renders scope, app, project, and windowID as the canonical wire
// form "scope:app:project:window_id". project may itself contain colons
// (a qualified name like account/repo:branch) — Build does not escape
// them, matching Parse's right-most-split recovery.
func Build(scope domain.Scope, app, project string, windowID int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", scope, app, project, windowID)
}

// Parse decodes a unified mark string. It returns false if s is not a
// well-formed unified mark: it must start with "scoped:" or "global:",
// split into at least 4 colon-separated segments, and its last segment
// must be entirely digits. Legacy 3-part marks ("scoped:project:123") are
// rejected, not just failed — a precise miss, not a parse error.
func Parse(s string) (Parsed, bool) {
	var scope domain.Scope
	switch {
	case strings.HasPrefix(s, "scoped:"):
		scope = domain.ScopeScoped
	case strings.HasPrefix(s, "global:"):
		scope = domain.ScopeGlobal
	default:
		return Parsed{}, false
	}

	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return Parsed{}, false
	}

	last := parts[len(parts)-1]
	if !allDigits(last) {
		return Parsed{}, false
	}
	windowID, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return Parsed{}, false
	}

	app := parts[1]
	project := strings.Join(parts[2:len(parts)-1], ":")

	return Parsed{Scope: scope, App: app, Project: project, WindowID: windowID}, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
