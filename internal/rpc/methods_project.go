package rpc

import (
	"context"
	"encoding/json"

	"github.com/vpittamp/i3pm-daemon/internal/dispatcher"
	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
	"github.com/vpittamp/i3pm-daemon/internal/git"
)

func projectList(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	names, err := h.deps.Store.ListProjects()
	if err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(names))
	for _, name := range names {
		p, err := h.deps.Store.LoadProject(name)
		if err != nil {
			continue // a project deleted between ListProjects and LoadProject is not an error for the caller
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func projectCurrent(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		return map[string]*string{"project_name": d.CurrentProject()}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type projectSwitchParams struct {
	ProjectName *string `json:"project_name"`
}

func projectSwitch(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p projectSwitchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		if err := d.SwitchProject(ctx, p.ProjectName); err != nil {
			return nil, err
		}
		return map[string]*string{"project_name": d.CurrentProject()}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func projectCreate(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p domain.Project
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.deps.Store.SaveProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

type projectDeleteParams struct {
	Name string `json:"name"`
}

func projectDelete(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p projectDeleteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.deps.Store.DeleteProject(p.Name); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func projectEdit(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p domain.Project
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := h.deps.Store.LoadProject(p.Name); err != nil {
		return nil, err
	}
	if err := h.deps.Store.SaveProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

func projectListRepositories(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	if h.deps.Store.Repos == nil {
		return nil, errkind.New(errkind.NotFound, "no repository registry configured")
	}
	f, err := h.deps.Store.Repos.Load(ctx)
	if err != nil {
		return nil, err
	}
	return f.Repositories, nil
}

// findRepository looks up a discovered repository by account/name from the
// cached repos.json — the RPC layer's only source of where a project's git
// checkout lives, since the daemon never discovers repositories itself.
func findRepository(ctx context.Context, h *Handler, account, name string) (string, error) {
	if h.deps.Store.Repos == nil {
		return "", errkind.New(errkind.NotFound, "no repository registry configured")
	}
	f, err := h.deps.Store.Repos.Load(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range f.Repositories {
		if r.Account == account && r.Name == name {
			return r.Path, nil
		}
	}
	return "", errkind.New(errkind.NotFound, "no repository "+account+"/"+name+" in repos.json")
}

type worktreeCreateParams struct {
	Account    string `json:"account"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
}

func worktreeCreate(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p worktreeCreateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	repoPath, err := findRepository(ctx, h, p.Account, p.Repository)
	if err != nil {
		return nil, err
	}
	exec := git.NewRealExecutor(repoPath)
	if err := exec.CreateWorktree(p.Path, p.Branch, p.BaseBranch); err != nil {
		return nil, errkind.Wrap(errkind.Invariant, "creating worktree", err)
	}
	h.deps.Store.Repos.Invalidate(ctx)
	return map[string]string{"path": p.Path, "branch": p.Branch}, nil
}

type worktreeEditParams struct {
	Account    string `json:"account"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
	NewBranch  string `json:"new_branch"`
	BaseBranch string `json:"base_branch"`
}

// worktreeEdit changes the branch a worktree tracks. GitExecutor exposes no
// in-place branch-swap primitive, so this composes its remove+create
// primitives: drop the worktree at Path and recreate it there tracking
// NewBranch off BaseBranch.
func worktreeEdit(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p worktreeEditParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	repoPath, err := findRepository(ctx, h, p.Account, p.Repository)
	if err != nil {
		return nil, err
	}
	exec := git.NewRealExecutor(repoPath)
	if err := exec.RemoveWorktree(p.Path); err != nil {
		return nil, errkind.Wrap(errkind.Invariant, "removing worktree for edit", err)
	}
	if err := exec.CreateWorktree(p.Path, p.NewBranch, p.BaseBranch); err != nil {
		return nil, errkind.Wrap(errkind.Invariant, "recreating worktree", err)
	}
	h.deps.Store.Repos.Invalidate(ctx)
	return map[string]string{"path": p.Path, "branch": p.NewBranch}, nil
}

type worktreeDeleteParams struct {
	Account    string `json:"account"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
}

func worktreeDelete(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p worktreeDeleteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	repoPath, err := findRepository(ctx, h, p.Account, p.Repository)
	if err != nil {
		return nil, err
	}
	exec := git.NewRealExecutor(repoPath)
	if err := exec.RemoveWorktree(p.Path); err != nil {
		return nil, errkind.Wrap(errkind.Invariant, "removing worktree", err)
	}
	h.deps.Store.Repos.Invalidate(ctx)
	return map[string]bool{"deleted": true}, nil
}

type layoutParams struct {
	Project string `json:"project"`
	Layout  string `json:"layout"`
}

func layoutSave(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p struct {
		layoutParams
		Snapshot json.RawMessage `json:"snapshot"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.deps.Store.SaveLayout(p.Project, p.Layout, p.Snapshot); err != nil {
		return nil, err
	}
	return map[string]bool{"saved": true}, nil
}

func layoutRestore(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p layoutParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	var snapshot json.RawMessage
	if err := h.deps.Store.LoadLayout(p.Project, p.Layout, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func layoutList(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p struct {
		Project string `json:"project"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return h.deps.Store.ListLayouts(p.Project)
}

func layoutDelete(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p layoutParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := h.deps.Store.DeleteLayout(p.Project, p.Layout); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

func layoutExport(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p layoutParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	var snapshot json.RawMessage
	if err := h.deps.Store.LoadLayout(p.Project, p.Layout, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}
