package dispatcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm-daemon/internal/configstore"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/launch"
	"github.com/vpittamp/i3pm-daemon/internal/scratchpad"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
)

// fakeWM implements both dispatcher.WMClient and scratchpad.TreeClient
// against an in-memory tree and a recorded command log, so tests never
// touch a real i3/Sway socket.
type fakeWM struct {
	tree     *wm.Node
	commands []string
}

func (f *fakeWM) Subscribe(ctx context.Context, kinds ...wm.EventKind) (<-chan wm.Event, error) {
	return make(chan wm.Event), nil
}

func (f *fakeWM) Command(ctx context.Context, payload string) ([]wm.CommandReply, error) {
	f.commands = append(f.commands, payload)
	return []wm.CommandReply{{Success: true}}, nil
}

func (f *fakeWM) GetTree(ctx context.Context) (*wm.Node, error) { return f.tree, nil }

func (f *fakeWM) Connected() bool { return true }

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeWM) {
	t.Helper()
	dir := t.TempDir()
	store := configstore.New(filepath.Join(dir, "config"), filepath.Join(dir, "data"))
	require.NoError(t, store.EnsureDirs())

	fake := &fakeWM{}
	mgr := scratchpad.New(fake, scratchpad.TerminalConfig{Command: "kitty"})

	d := New(Config{
		WM:       fake,
		Store:    store,
		Launches: launch.New(5 * time.Second),
		Scratch:  mgr,
	})
	require.NoError(t, d.ReloadConfig())
	return d, fake
}

func TestHandleWindowNew_DefaultsToGlobal(t *testing.T) {
	d, fake := newTestDispatcher(t)

	node := &wm.Node{ID: 1, PID: 12345, WindowProps: &wm.WindowProperties{Class: "Firefox", Title: "Mozilla Firefox"}}
	d.handleWindowNew(context.Background(), node)

	tracked, ok := d.Window(1)
	require.True(t, ok)
	require.Equal(t, domain.ScopeGlobal, tracked.Scope)
	require.NotEmpty(t, fake.commands)
}

func TestHandleWindowNew_ProjectScopedClassMovesToScratchpad(t *testing.T) {
	d, fake := newTestDispatcher(t)

	require.NoError(t, d.store.SaveProject(domain.Project{
		Name:          "widgets",
		Directory:     t.TempDir(),
		ScopedClasses: []string{"code"},
	}))
	require.NoError(t, d.ReloadConfig())

	node := &wm.Node{ID: 2, PID: 1, WindowProps: &wm.WindowProperties{Class: "code"}}
	d.handleWindowNew(context.Background(), node)

	tracked, ok := d.Window(2)
	require.True(t, ok)
	require.Equal(t, domain.ScopeScoped, tracked.Scope)
	require.True(t, tracked.Hidden)

	found := false
	for _, cmd := range fake.commands {
		if cmd == `[con_id=2] move scratchpad` {
			found = true
		}
	}
	require.True(t, found)
}

func TestHandleWindowClose_RemovesFromIndex(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.handleWindowNew(context.Background(), &wm.Node{ID: 3, WindowProps: &wm.WindowProperties{Class: "Alacritty"}})
	require.Len(t, d.Windows(), 1)

	d.handleWindowClose(&wm.Node{ID: 3})
	require.Empty(t, d.Windows())
}

func TestSwitchProject_RecomputesVisibility(t *testing.T) {
	d, fake := newTestDispatcher(t)

	require.NoError(t, d.store.SaveProject(domain.Project{
		Name:          "widgets",
		Directory:     t.TempDir(),
		ScopedClasses: []string{"code"},
	}))
	require.NoError(t, d.ReloadConfig())

	d.handleWindowNew(context.Background(), &wm.Node{ID: 4, WindowProps: &wm.WindowProperties{Class: "code"}})
	tracked, ok := d.Window(4)
	require.True(t, ok)
	require.True(t, tracked.Hidden)

	name := "widgets"
	require.NoError(t, d.SwitchProject(context.Background(), &name))

	require.False(t, tracked.Hidden)
	found := false
	for _, cmd := range fake.commands {
		if cmd == `[con_id=4] move to workspace number 0` {
			found = true
		}
	}
	require.True(t, found)
}

func TestValidateState_DetectsMismatch(t *testing.T) {
	d, fake := newTestDispatcher(t)
	d.handleWindowNew(context.Background(), &wm.Node{ID: 5, WindowProps: &wm.WindowProperties{Class: "Firefox"}})

	fake.tree = &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{
		{ID: 6, Type: "con", WindowProps: &wm.WindowProperties{Class: "Chromium"}},
	}}

	missing, extra, err := d.ValidateState(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{6}, missing)
	require.Equal(t, []int64{5}, extra)
}

func TestNotifyLaunch_ReturnsKey(t *testing.T) {
	d, _ := newTestDispatcher(t)
	id := d.NotifyLaunch(domain.PendingLaunch{AppName: "code", ExpectedClass: "code"})
	require.NotEmpty(t, id)
}
