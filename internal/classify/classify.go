// Package classify implements the 4-tier classification pipeline that
// decides a window's {scope, workspace} from its class, title, and the
// currently loaded project/rule/app-class configuration.
package classify

import (
	"sort"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

// Context bundles the configuration consulted by Classify, fully resolved
// by the caller (Config Store + active project) ahead of time so this
// package stays a pure function of its inputs.
type Context struct {
	ActiveScopedClasses []string
	WindowRules         []domain.WindowRule
	AppPatterns         []*domain.PatternRule
	AppScopedClasses    []string
	AppGlobalClasses    []string
}

// SortRules sorts window rules by priority descending, the order the
// daemon evaluates them in; config-file order is preserved for ties
// (sort.SliceStable).
func SortRules(rules []domain.WindowRule) []domain.WindowRule {
	sorted := make([]domain.WindowRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pattern.Priority > sorted[j].Pattern.Priority
	})
	return sorted
}

// Classify decides {scope, workspace} for a window using the strictly
// ordered 4-tier precedence: project scoped_classes (1000), window rules
// (200-500), app-classification patterns (100), app-classification
// literal lists (50), default (global).
//
// The scoped_classes tier is exact class equality, not the tiered class
// identifier of identity.Match — the original source's pattern resolver
// only ever checks plain list membership, never calling the tiered
// matcher, so this resolves the spec's open question the same way.
func Classify(class, title string, ctx Context) domain.Classification {
	for _, c := range ctx.ActiveScopedClasses {
		if c == class {
			return domain.Classification{Scope: domain.ScopeScoped, Source: domain.SourceProject}
		}
	}

	for i := range ctx.WindowRules {
		rule := ctx.WindowRules[i]
		if rule.Matches(class, title) {
			var ws *int
			if rule.LegacyWorkspace != 0 {
				w := rule.LegacyWorkspace
				ws = &w
			} else {
				for _, a := range rule.Actions {
					if wa, ok := a.(domain.WorkspaceAction); ok {
						w := wa.Target
						ws = &w
						break
					}
				}
			}
			return domain.Classification{
				Scope:       rule.Pattern.Scope,
				Workspace:   ws,
				Source:      domain.SourceWindowRule,
				MatchedRule: &ctx.WindowRules[i],
			}
		}
	}

	for _, p := range ctx.AppPatterns {
		if p.Matches(class) {
			return domain.Classification{Scope: p.Scope, Source: domain.SourceAppClasses}
		}
	}

	for _, c := range ctx.AppScopedClasses {
		if c == class {
			return domain.Classification{Scope: domain.ScopeScoped, Source: domain.SourceAppClasses}
		}
	}
	for _, c := range ctx.AppGlobalClasses {
		if c == class {
			return domain.Classification{Scope: domain.ScopeGlobal, Source: domain.SourceAppClasses}
		}
	}

	return domain.Classification{Scope: domain.ScopeGlobal, Source: domain.SourceDefault}
}
