package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/mark"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
)

func newTestStore(t *testing.T) *configstore.Store {
	t.Helper()
	dir := t.TempDir()
	return configstore.New(filepath.Join(dir, "config"), filepath.Join(dir, "data"))
}

func TestValidateAll_CreatesMissingDirs(t *testing.T) {
	store := newTestStore(t)
	r := ValidateAll(context.Background(), Deps{Store: store})

	require.True(t, r.IsValid)
	_, err := os.Stat(filepath.Join(store.ConfigDir, "projects"))
	require.NoError(t, err)
}

func TestValidateAll_ResetsCorruptConfig(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.EnsureDirs())
	path := filepath.Join(store.ConfigDir, "app-classes.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	r := ValidateAll(context.Background(), Deps{Store: store})

	require.False(t, r.IsValid)
	require.NotEmpty(t, r.Errors)
	require.NotEmpty(t, r.Fixes)

	classes, err := store.LoadAppClasses()
	require.NoError(t, err)
	require.Empty(t, classes.ScopedClasses)

	matches, _ := filepath.Glob(path + ".corrupt-*")
	require.Len(t, matches, 1)
}

func TestValidateAll_WarnsOnDisconnectedWM(t *testing.T) {
	store := newTestStore(t)
	r := ValidateAll(context.Background(), Deps{
		Store:       store,
		WMConnected: func() bool { return false },
	})
	require.Contains(t, r.Warnings, "window manager IPC is disconnected; reconnect loop is active")
}

func TestValidateAll_RebuildsIndexFromTree(t *testing.T) {
	store := newTestStore(t)
	tree := &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{
		{ID: 1, Type: "con", WindowProps: &wm.WindowProperties{Class: "Firefox"}, Marks: []string{
			mark.Build(domain.ScopeGlobal, "firefox", "", 1),
		}},
	}}

	var indexed []int64
	r := ValidateAll(context.Background(), Deps{
		Store: store,
		Tree:  func(ctx context.Context) (*wm.Node, error) { return tree, nil },
		IndexWindow: func(n *wm.Node, parsed mark.Parsed, ok bool) {
			require.True(t, ok)
			indexed = append(indexed, n.ID)
		},
	})

	require.True(t, r.IsValid)
	require.Equal(t, []int64{1}, indexed)
}

func TestValidateAll_ReportsOrphanedProjectMark(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveProject(domain.Project{Name: "known", Directory: t.TempDir()}))

	tree := &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{
		{ID: 1, WindowProps: &wm.WindowProperties{Class: "code"}, Marks: []string{
			mark.Build(domain.ScopeScoped, "code", "ghost-project", 1),
		}},
	}}

	r := ValidateAll(context.Background(), Deps{
		Store:       store,
		Tree:        func(ctx context.Context) (*wm.Node, error) { return tree, nil },
		IndexWindow: func(n *wm.Node, parsed mark.Parsed, ok bool) {},
	})

	found := false
	for _, w := range r.Warnings {
		if w == `window marked for unknown project "ghost-project"` {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateAll_EventBufferOverCapacityIsError(t *testing.T) {
	store := newTestStore(t)
	r := ValidateAll(context.Background(), Deps{
		Store:           store,
		EventBufferSize: func() (int, int) { return 600, 500 },
	})
	require.False(t, r.IsValid)
}

func TestResult_ExitCode(t *testing.T) {
	require.Equal(t, 0, Result{}.ExitCode())
	require.Equal(t, 1, Result{Warnings: []string{"x"}}.ExitCode())
	require.Equal(t, 2, Result{Errors: []string{"x"}}.ExitCode())
}

// TestValidateAll_IdempotentOnSecondPass asserts the core recovery
// invariant: running ValidateAll again immediately after a pass that fixed
// everything it could must report no errors, for any initial mix of
// missing/corrupt config files.
func TestValidateAll_IdempotentOnSecondPass(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := newTestStore(t)
		require.NoError(rt, store.EnsureDirs())

		for _, name := range []string{"active-project.json", "app-classes.json", "window-rules.json", "discovery-config.json"} {
			if rapid.Bool().Draw(rt, "corrupt-"+name) {
				require.NoError(rt, os.WriteFile(filepath.Join(store.ConfigDir, name), []byte("not json"), 0o644))
			}
		}

		_ = ValidateAll(context.Background(), Deps{Store: store})
		second := ValidateAll(context.Background(), Deps{Store: store})

		require.Empty(rt, second.Errors)
	})
}
