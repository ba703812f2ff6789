// Package configstore loads, validates, caches, and atomically writes the
// daemon's JSON config files: repos.json, accounts.json,
// active-worktree.json, active-project.json, app-classes.json,
// window-rules.json, per-project files, and per-project layout snapshots.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxBackups = 5

// atomicWriteJSON writes v as indented JSON to path via write-to-temp then
// rename, so readers never observe a partial file; it also rotates a
// rolling `<file>.backup` (keeping the last maxBackups generations) before
// replacing the target.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("configstore: marshaling %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("configstore: creating dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("configstore: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("configstore: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("configstore: fsyncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("configstore: closing %s: %w", tmpPath, err)
	}

	if _, err := os.Stat(path); err == nil {
		rotateBackups(path)
		if err := os.Rename(path, path+".backup"); err != nil {
			return fmt.Errorf("configstore: backing up %s: %w", path, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("configstore: renaming %s into place: %w", path, err)
	}
	return nil
}

// rotateBackups shifts path.backup.1..maxBackups-2 up by one generation so
// the newest backup about to be written doesn't clobber history; together
// with path.backup that keeps maxBackups generations.
func rotateBackups(path string) {
	for i := maxBackups - 2; i >= 1; i-- {
		src := fmt.Sprintf("%s.backup.%d", path, i)
		dst := fmt.Sprintf("%s.backup.%d", path, i+1)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, dst)
		}
	}
	if _, err := os.Stat(path + ".backup"); err == nil {
		_ = os.Rename(path+".backup", path+".backup.1")
	}
}

// readJSON reads and unmarshals path into v. Missing files return an
// errkind-less os.ErrNotExist-wrapping error so callers can distinguish
// "not found" from "malformed" per spec §7's ConfigNotFound/ConfigParse
// split.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("configstore: parsing %s: %w", path, err)
	}
	return nil
}
