// Package scratchpad manages the one active scratchpad terminal per
// project: spawning the configured terminal binary, correlating it with
// its window in the WM tree, and toggling its visibility.
package scratchpad

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/log"
	"github.com/vpittamp/i3pm-daemon/internal/wm"
)

// PollInterval and PollTimeout bound how long Launch waits for the
// spawned terminal's window to appear in the WM tree.
const (
	PollInterval = 50 * time.Millisecond
	PollTimeout  = 3 * time.Second
)

// ScratchpadWorkspace is the workspace name i3/Sway gives windows moved to
// the scratchpad.
const ScratchpadWorkspace = "__i3_scratch"

// TreeClient is the subset of wm.Client the manager needs, narrowed for
// testability.
type TreeClient interface {
	GetTree(ctx context.Context) (*wm.Node, error)
	Command(ctx context.Context, cmd string) ([]wm.CommandReply, error)
}

// TerminalConfig describes how to spawn a project's scratchpad terminal.
type TerminalConfig struct {
	Command    string
	Parameters []string
}

// Manager tracks each project's single scratchpad terminal and drives its
// lifecycle via wm.Client commands.
type Manager struct {
	mu        sync.Mutex
	terminals map[string]domain.ScratchpadTerminal
	client    TreeClient
	terminal  TerminalConfig
}

// New constructs a Manager that spawns term and drives client for
// WM-tree lookups and mark/move commands.
func New(client TreeClient, term TerminalConfig) *Manager {
	return &Manager{
		terminals: make(map[string]domain.ScratchpadTerminal),
		client:    client,
		terminal:  term,
	}
}

// Launch spawns the scratchpad terminal for project rooted at cwd, waits
// for its window to appear, marks it, and records the ScratchpadTerminal.
func (m *Manager) Launch(ctx context.Context, project, cwd string) (domain.ScratchpadTerminal, error) {
	if info, err := os.Stat(cwd); err != nil || !info.IsDir() {
		return domain.ScratchpadTerminal{}, fmt.Errorf("scratchpad: working dir %q does not exist", cwd)
	}

	m.mu.Lock()
	if _, exists := m.terminals[project]; exists {
		m.mu.Unlock()
		return domain.ScratchpadTerminal{}, fmt.Errorf("scratchpad: terminal already active for project %q", project)
	}
	m.mu.Unlock()

	appID := fmt.Sprintf("scratchpad-%s-%d", project, time.Now().Unix())
	env := append(os.Environ(),
		"I3PM_SCRATCHPAD=true",
		"I3PM_PROJECT_NAME="+project,
		"I3PM_WORKING_DIR="+cwd,
		"I3PM_APP_NAME=scratchpad-terminal",
		"I3PM_SCOPE="+string(domain.ScopeScoped),
		"I3PM_APP_ID="+appID,
	)

	cmd := exec.Command(m.terminal.Command, m.terminal.Parameters...)
	cmd.Dir = cwd
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return domain.ScratchpadTerminal{}, fmt.Errorf("scratchpad: spawning terminal: %w", err)
	}
	pid := cmd.Process.Pid
	log.SafeGo("scratchpad-reap-"+project, func() { _ = cmd.Wait() })

	node, err := m.pollForWindow(ctx, pid)
	if err != nil {
		return domain.ScratchpadTerminal{}, err
	}

	markValue := "scratchpad:" + project
	if _, err := m.client.Command(ctx, fmt.Sprintf(`[con_id=%d] mark --add %q`, node.ID, markValue)); err != nil {
		return domain.ScratchpadTerminal{}, fmt.Errorf("scratchpad: marking window: %w", err)
	}

	term := domain.ScratchpadTerminal{
		ProjectName: project,
		PID:         pid,
		WindowID:    node.ID,
		Mark:        markValue,
		WorkingDir:  cwd,
		LastShownAt: time.Now(),
	}
	m.mu.Lock()
	m.terminals[project] = term
	m.mu.Unlock()
	return term, nil
}

// pollForWindow waits until a window owned by pid appears in the WM tree,
// bounded by PollTimeout.
func (m *Manager) pollForWindow(ctx context.Context, pid int) (*wm.Node, error) {
	deadline := time.Now().Add(PollTimeout)
	for time.Now().Before(deadline) {
		tree, err := m.client.GetTree(ctx)
		if err == nil {
			var found *wm.Node
			tree.Walk(func(n *wm.Node) {
				if found == nil && n.PID == pid {
					found = n
				}
			})
			if found != nil {
				return found, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
	return nil, fmt.Errorf("scratchpad: timed out waiting for window from pid %d", pid)
}

// Validate reports whether project's terminal is still alive: its process
// runs, its window exists, and its mark is present. A missing mark is
// repaired in place. A dead process, a missing window, or a failed re-mark
// removes the entry; a failed tree fetch reports false and keeps it.
func (m *Manager) Validate(ctx context.Context, project string) bool {
	m.mu.Lock()
	term, ok := m.terminals[project]
	m.mu.Unlock()
	if !ok {
		return false
	}

	if !processAlive(term.PID) {
		m.drop(project)
		return false
	}

	tree, err := m.client.GetTree(ctx)
	if err != nil {
		return false
	}
	var node *wm.Node
	tree.Walk(func(n *wm.Node) {
		if node == nil && n.ID == term.WindowID {
			node = n
		}
	})
	if node == nil {
		m.drop(project)
		return false
	}

	hasMark := false
	for _, mk := range node.Marks {
		if mk == term.Mark {
			hasMark = true
			break
		}
	}
	if !hasMark {
		if _, err := m.client.Command(ctx, fmt.Sprintf(`[con_id=%d] mark --add %q`, term.WindowID, term.Mark)); err != nil {
			m.drop(project)
			return false
		}
	}
	return true
}

// State is whether a project's scratchpad terminal is on-screen or
// stashed.
type State string

const (
	StateVisible State = "visible"
	StateHidden  State = "hidden"
)

// GetState reports whether project's terminal is currently shown or
// stashed in the scratchpad, based on its window's current workspace.
func (m *Manager) GetState(ctx context.Context, project string) (State, error) {
	m.mu.Lock()
	term, ok := m.terminals[project]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("scratchpad: no terminal for project %q", project)
	}

	tree, err := m.client.GetTree(ctx)
	if err != nil {
		return "", err
	}
	var wsName string
	var walk func(n *wm.Node, ws string)
	walk = func(n *wm.Node, ws string) {
		if n.Type == "workspace" {
			ws = n.Name
		}
		if n.ID == term.WindowID {
			wsName = ws
		}
		for _, c := range n.Nodes {
			walk(c, ws)
		}
		for _, c := range n.FloatingNodes {
			walk(c, ws)
		}
	}
	walk(tree, "")

	if wsName == ScratchpadWorkspace {
		return StateHidden, nil
	}
	return StateVisible, nil
}

// Toggle shows project's hidden terminal or stashes its visible one.
func (m *Manager) Toggle(ctx context.Context, project string) error {
	m.mu.Lock()
	term, ok := m.terminals[project]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("scratchpad: no terminal for project %q", project)
	}

	state, err := m.GetState(ctx, project)
	if err != nil {
		return err
	}

	if state == StateVisible {
		_, err := m.client.Command(ctx, fmt.Sprintf(`[con_id=%d] move scratchpad`, term.WindowID))
		return err
	}

	if _, err := m.client.Command(ctx, fmt.Sprintf(`[con_mark=%q] scratchpad show`, term.Mark)); err != nil {
		return err
	}
	m.mu.Lock()
	term.LastShownAt = time.Now()
	m.terminals[project] = term
	m.mu.Unlock()
	return nil
}

// CleanupInvalid validates every tracked terminal and returns how many
// failed validation; Validate decides which of those are dropped.
func (m *Manager) CleanupInvalid(ctx context.Context) int {
	m.mu.Lock()
	projects := make([]string, 0, len(m.terminals))
	for p := range m.terminals {
		projects = append(projects, p)
	}
	m.mu.Unlock()

	removed := 0
	for _, p := range projects {
		if !m.Validate(ctx, p) {
			removed++
		}
	}
	return removed
}

// ByWindowID returns the ScratchpadTerminal whose WindowID matches id, for
// dispatcher window::close cleanup.
func (m *Manager) ByWindowID(id int64) (domain.ScratchpadTerminal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, term := range m.terminals {
		if term.WindowID == id {
			return term, true
		}
	}
	return domain.ScratchpadTerminal{}, false
}

// RemoveByWindowID drops the terminal entry whose WindowID matches id.
func (m *Manager) RemoveByWindowID(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for project, term := range m.terminals {
		if term.WindowID == id {
			delete(m.terminals, project)
			return
		}
	}
}

func (m *Manager) drop(project string) {
	m.mu.Lock()
	delete(m.terminals, project)
	m.mu.Unlock()
}
