package mark

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
)

func TestBuild(t *testing.T) {
	got := Build(domain.ScopeScoped, "vscode", "nixos", 123)
	require.Equal(t, "scoped:vscode:nixos:123", got)
}

func TestParse_QualifiedProjectName(t *testing.T) {
	parsed, ok := Parse("scoped:vscode:myaccount/myrepo:branch:456")
	require.True(t, ok)
	require.Equal(t, domain.ScopeScoped, parsed.Scope)
	require.Equal(t, "vscode", parsed.App)
	require.Equal(t, "myaccount/myrepo:branch", parsed.Project)
	require.Equal(t, int64(456), parsed.WindowID)
}

func TestParse_LegacyThreePartRejected(t *testing.T) {
	_, ok := Parse("scoped:project:123")
	require.False(t, ok)
}

func TestParse_UnknownScopeRejected(t *testing.T) {
	_, ok := Parse("other:app:project:123")
	require.False(t, ok)
}

func TestParse_NonNumericTailRejected(t *testing.T) {
	_, ok := Parse("scoped:app:project:abc")
	require.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		scope := domain.Scope(rapid.SampledFrom([]string{"scoped", "global"}).Draw(rt, "scope"))
		app := rapid.StringMatching(`[A-Za-z0-9_-]+`).Draw(rt, "app")
		project := rapid.StringMatching(`[A-Za-z0-9_./-]+`).Draw(rt, "project")
		windowID := rapid.Int64Range(0, 1<<40).Draw(rt, "windowID")

		built := Build(scope, app, project, windowID)
		parsed, ok := Parse(built)
		require.True(rt, ok)
		require.Equal(rt, scope, parsed.Scope)
		require.Equal(rt, app, parsed.App)
		require.Equal(rt, project, parsed.Project)
		require.Equal(rt, windowID, parsed.WindowID)
	})
}
