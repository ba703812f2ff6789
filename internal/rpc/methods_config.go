package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vpittamp/i3pm-daemon/internal/dispatcher"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
	"github.com/vpittamp/i3pm-daemon/internal/recovery"
)

func configReload(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		if err := d.ReloadConfig(); err != nil {
			return nil, err
		}
		return map[string]bool{"reloaded": true}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func configValidate(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	return recovery.ValidateAll(ctx, recovery.Deps{Store: h.deps.Store}), nil
}

// configGetConflicts maps to the same consistency pass config_validate
// runs, surfacing only its Warnings — the closest fit to "conflicts" this
// daemon can report, since config files here are schema-validated on load
// rather than merged from multiple authors.
func configGetConflicts(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	r := recovery.ValidateAll(ctx, recovery.Deps{Store: h.deps.Store})
	return map[string]any{"conflicts": r.Warnings}, nil
}

type configFileParams struct {
	File string `json:"file"`
}

func (h *Handler) configPath(file string) (string, error) {
	if file == "" || filepath.Base(file) != file {
		return "", errkind.New(errkind.Invariant, "file must be a bare config filename")
	}
	return filepath.Join(h.deps.Store.ConfigDir, file), nil
}

func configShow(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p configFileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	path, err := h.configPath(p.File)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.New(errkind.NotFound, "config file not found: "+p.File)
		}
		return nil, err
	}
	return json.RawMessage(data), nil
}

// backupVersion describes one rotated backup generation of a config file.
type backupVersion struct {
	Path    string `json:"path"`
	ModTime string `json:"mod_time"`
}

func configGetVersions(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p configFileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	path, err := h.configPath(p.File)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(path + ".backup*")
	if err != nil {
		return nil, err
	}
	versions := make([]backupVersion, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		versions = append(versions, backupVersion{Path: m, ModTime: info.ModTime().Format("2006-01-02T15:04:05Z07:00")})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].ModTime > versions[j].ModTime })
	return versions, nil
}

func configRollback(ctx context.Context, h *Handler, params json.RawMessage) (any, error) {
	var p configFileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	path, err := h.configPath(p.File)
	if err != nil {
		return nil, err
	}

	backupPath := path + ".backup"
	data, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.New(errkind.NotFound, "no backup available for "+p.File)
		}
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("rpc: rolling back %s: %w", p.File, err)
	}

	result, err := h.submit(ctx, func(d *dispatcher.Dispatcher) (any, error) {
		return nil, d.ReloadConfig()
	})
	_ = result
	if err != nil {
		return nil, err
	}
	return map[string]bool{"rolled_back": true}, nil
}
