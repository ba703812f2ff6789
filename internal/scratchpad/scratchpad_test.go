package scratchpad

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
)

type fakeClient struct {
	tree     *wm.Node
	commands []string
}

func (f *fakeClient) GetTree(ctx context.Context) (*wm.Node, error) { return f.tree, nil }

func (f *fakeClient) Command(ctx context.Context, cmd string) ([]wm.CommandReply, error) {
	f.commands = append(f.commands, cmd)
	return []wm.CommandReply{{Success: true}}, nil
}

func newTerminal(pid int, windowID int64, mark string) domain.ScratchpadTerminal {
	return domain.ScratchpadTerminal{
		ProjectName: "demo",
		PID:         pid,
		WindowID:    windowID,
		Mark:        mark,
		WorkingDir:  "/tmp",
		LastShownAt: time.Now(),
	}
}

func TestPollForWindow_FindsMatchingPID(t *testing.T) {
	tree := &wm.Node{ID: 1, Type: "root", Nodes: []*wm.Node{{ID: 2, PID: os.Getpid()}}}
	client := &fakeClient{tree: tree}
	mgr := New(client, TerminalConfig{})

	node, err := mgr.pollForWindow(context.Background(), os.Getpid())
	require.NoError(t, err)
	require.EqualValues(t, 2, node.ID)
}

func TestPollForWindow_TimesOutWithNoMatch(t *testing.T) {
	tree := &wm.Node{ID: 1, Type: "root"}
	client := &fakeClient{tree: tree}
	mgr := New(client, TerminalConfig{})

	_, err := mgr.pollForWindow(context.Background(), 424242)
	require.Error(t, err)
}

func TestLaunch_RejectsMissingCwd(t *testing.T) {
	mgr := New(&fakeClient{tree: &wm.Node{ID: 1}}, TerminalConfig{Command: "true"})
	_, err := mgr.Launch(context.Background(), "demo", "/no/such/directory")
	require.Error(t, err)
}

func TestLaunch_RejectsDuplicateProject(t *testing.T) {
	mgr := New(&fakeClient{tree: &wm.Node{ID: 1}}, TerminalConfig{Command: "true"})
	mgr.terminals["demo"] = newTerminal(os.Getpid(), 2, "scratchpad:demo")

	_, err := mgr.Launch(context.Background(), "demo", "/tmp")
	require.Error(t, err)
}

func TestValidate_MissingMarkIsRepaired(t *testing.T) {
	tree := &wm.Node{ID: 1, Type: "root", Nodes: []*wm.Node{{ID: 2, PID: os.Getpid()}}}
	client := &fakeClient{tree: tree}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["demo"] = newTerminal(os.Getpid(), 2, "scratchpad:demo")

	ok := mgr.Validate(context.Background(), "demo")
	require.True(t, ok)
	require.Contains(t, client.commands[0], "mark --add")
}

func TestValidate_DeadProcessDropsEntry(t *testing.T) {
	tree := &wm.Node{ID: 1, Type: "root"}
	client := &fakeClient{tree: tree}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["demo"] = newTerminal(999999, 2, "scratchpad:demo")

	ok := mgr.Validate(context.Background(), "demo")
	require.False(t, ok)
	_, exists := mgr.terminals["demo"]
	require.False(t, exists)
}

func TestValidate_MissingWindowDropsEntry(t *testing.T) {
	tree := &wm.Node{ID: 1, Type: "root"}
	client := &fakeClient{tree: tree}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["demo"] = newTerminal(os.Getpid(), 2, "scratchpad:demo")

	ok := mgr.Validate(context.Background(), "demo")
	require.False(t, ok)
}

func TestGetState_ScratchpadWorkspace(t *testing.T) {
	ws := &wm.Node{ID: 1, Type: "workspace", Name: ScratchpadWorkspace}
	win := &wm.Node{ID: 2, PID: os.Getpid(), Marks: []string{"scratchpad:demo"}}
	ws.Nodes = []*wm.Node{win}
	root := &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{ws}}

	client := &fakeClient{tree: root}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["demo"] = newTerminal(os.Getpid(), 2, "scratchpad:demo")

	state, err := mgr.GetState(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, StateHidden, state)
}

func TestGetState_RegularWorkspaceIsVisible(t *testing.T) {
	ws := &wm.Node{ID: 1, Type: "workspace", Name: "1"}
	win := &wm.Node{ID: 2, PID: os.Getpid(), Marks: []string{"scratchpad:demo"}}
	ws.Nodes = []*wm.Node{win}
	root := &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{ws}}

	client := &fakeClient{tree: root}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["demo"] = newTerminal(os.Getpid(), 2, "scratchpad:demo")

	state, err := mgr.GetState(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, StateVisible, state)
}

func TestToggle_VisibleMovesToScratchpad(t *testing.T) {
	ws := &wm.Node{ID: 1, Type: "workspace", Name: "1"}
	win := &wm.Node{ID: 2, PID: os.Getpid(), Marks: []string{"scratchpad:demo"}}
	ws.Nodes = []*wm.Node{win}
	root := &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{ws}}

	client := &fakeClient{tree: root}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["demo"] = newTerminal(os.Getpid(), 2, "scratchpad:demo")

	require.NoError(t, mgr.Toggle(context.Background(), "demo"))
	require.Contains(t, client.commands[0], "move scratchpad")
}

func TestToggle_HiddenShowsAndUpdatesLastShown(t *testing.T) {
	ws := &wm.Node{ID: 1, Type: "workspace", Name: ScratchpadWorkspace}
	win := &wm.Node{ID: 2, PID: os.Getpid(), Marks: []string{"scratchpad:demo"}}
	ws.Nodes = []*wm.Node{win}
	root := &wm.Node{ID: 0, Type: "root", Nodes: []*wm.Node{ws}}

	client := &fakeClient{tree: root}
	mgr := New(client, TerminalConfig{})
	before := time.Now().Add(-time.Hour)
	term := newTerminal(os.Getpid(), 2, "scratchpad:demo")
	term.LastShownAt = before
	mgr.terminals["demo"] = term

	require.NoError(t, mgr.Toggle(context.Background(), "demo"))
	require.Contains(t, client.commands[0], "scratchpad show")
	require.True(t, mgr.terminals["demo"].LastShownAt.After(before))
}

func TestCleanupInvalid_CountsRemoved(t *testing.T) {
	tree := &wm.Node{ID: 1, Type: "root"}
	client := &fakeClient{tree: tree}
	mgr := New(client, TerminalConfig{})
	mgr.terminals["a"] = newTerminal(999999, 2, "scratchpad:a")
	mgr.terminals["b"] = newTerminal(999998, 3, "scratchpad:b")

	removed := mgr.CleanupInvalid(context.Background())
	require.Equal(t, 2, removed)
	require.Empty(t, mgr.terminals)
}
