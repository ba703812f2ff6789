package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

func mustPattern(t *testing.T, raw string, scope domain.Scope, priority int) *domain.PatternRule {
	t.Helper()
	p, err := domain.ParsePattern(raw, scope, priority, "")
	require.NoError(t, err)
	return p
}

func TestClassify_ProjectScopedClassesWins(t *testing.T) {
	ctx := Context{ActiveScopedClasses: []string{"Code"}}
	c := Classify("Code", "", ctx)
	require.Equal(t, domain.ScopeScoped, c.Scope)
	require.Equal(t, domain.SourceProject, c.Source)
	require.Nil(t, c.Workspace)
}

func TestClassify_WindowRulesBeatAppClasses(t *testing.T) {
	pattern := mustPattern(t, "Code", domain.ScopeGlobal, 300)
	rule := domain.WindowRule{Pattern: pattern, LegacyWorkspace: 4}
	ctx := Context{
		WindowRules:      SortRules([]domain.WindowRule{rule}),
		AppScopedClasses: []string{"Code"},
	}
	c := Classify("Code", "", ctx)
	require.Equal(t, domain.SourceWindowRule, c.Source)
	require.NotNil(t, c.Workspace)
	require.Equal(t, 4, *c.Workspace)
}

func TestClassify_PatternAutoClassificationScenario(t *testing.T) {
	p := mustPattern(t, "glob:pwa-*", domain.ScopeGlobal, 10)
	ctx := Context{AppPatterns: []*domain.PatternRule{p}}
	for _, class := range []string{"pwa-youtube", "pwa-slack", "pwa-gmail"} {
		c := Classify(class, "", ctx)
		require.Equal(t, domain.ScopeGlobal, c.Scope)
		require.Equal(t, domain.SourceAppClasses, c.Source)
	}
}

func TestClassify_Default(t *testing.T) {
	c := Classify("SomeRandomApp", "", Context{})
	require.Equal(t, domain.ScopeGlobal, c.Scope)
	require.Equal(t, domain.SourceDefault, c.Source)
}

func TestClassify_GlobalBlacklistShortCircuits(t *testing.T) {
	pattern := mustPattern(t, "glob:*", domain.ScopeGlobal, 200)
	rule := domain.WindowRule{Pattern: pattern, Modifier: domain.ModifierGlobal, Blacklist: []string{"Code"}}
	ctx := Context{WindowRules: []domain.WindowRule{rule}, AppGlobalClasses: []string{"Code"}}
	c := Classify("Code", "", ctx)
	// Blacklisted, so the rule doesn't match; falls through to app classes.
	require.Equal(t, domain.SourceAppClasses, c.Source)
}

func TestSortRules_PriorityDescendingStable(t *testing.T) {
	low := domain.WindowRule{Pattern: mustPattern(t, "a", domain.ScopeGlobal, 100)}
	high := domain.WindowRule{Pattern: mustPattern(t, "b", domain.ScopeGlobal, 500)}
	sorted := SortRules([]domain.WindowRule{low, high})
	require.Equal(t, 500, sorted[0].Pattern.Priority)
	require.Equal(t, 100, sorted[1].Pattern.Priority)
}
