// Package domain holds the daemon's core data model: projects, tracked
// windows, marks, launches, scratchpad terminals, and trace sessions.
package domain

import (
	"fmt"
	"regexp"
)

// SourceType identifies where a Project originated.
type SourceType string

const (
	SourceLocal    SourceType = "local"
	SourceWorktree SourceType = "worktree"
	SourceRemote   SourceType = "remote"
)

var projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-/:]+$`)

// ValidProjectName reports whether name satisfies the identity grammar
// required of a Project.
func ValidProjectName(name string) bool {
	return name != "" && projectNamePattern.MatchString(name)
}

// BranchMetadata describes a worktree's git branch, when the project is
// backed by one. Mirrors the "strongly typed record" Design Note: a
// WorktreeEnvironment's branch fields collapse into this struct rather than
// a loosely-typed dict.
type BranchMetadata struct {
	Type     string `json:"type"`
	Number   int    `json:"number"`
	FullName string `json:"full_name"`
}

// Project is a named, possibly worktree-backed, scope that windows can
// belong to.
type Project struct {
	Name                 string          `json:"name"`
	DisplayName          string          `json:"display_name,omitempty"`
	Icon                 string          `json:"icon,omitempty"`
	Directory            string          `json:"directory"`
	ScopedClasses        []string        `json:"scoped_classes,omitempty"`
	WorkspacePreferences map[string]int  `json:"workspace_preferences,omitempty"`
	Branch               *BranchMetadata `json:"branch,omitempty"`
	ParentProject        string          `json:"parent_project,omitempty"`
	SourceType           SourceType      `json:"source_type"`
}

// Validate checks that Project's name matches the project-name grammar.
// Directory is not checked: neither its form nor its existence.
func (p Project) Validate() error {
	if !ValidProjectName(p.Name) {
		return fmt.Errorf("invalid project name %q", p.Name)
	}
	return nil
}

// ActiveProjectState is the process-wide singleton tracking which project
// (if any) is currently active. A nil ProjectName means "global mode".
type ActiveProjectState struct {
	ProjectName *string
}

// IsActive reports whether name is the currently active project.
func (s ActiveProjectState) IsActive(name string) bool {
	return s.ProjectName != nil && *s.ProjectName == name
}

// IsGlobalMode reports whether no project is active.
func (s ActiveProjectState) IsGlobalMode() bool {
	return s.ProjectName == nil
}
