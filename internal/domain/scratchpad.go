package domain

import "time"

// ScratchpadTerminal is the daemon's record of a project's single active
// scratchpad terminal.
type ScratchpadTerminal struct {
	ProjectName string    `json:"project_name"`
	PID         int       `json:"pid"`
	WindowID    int64     `json:"window_id"`
	Mark        string    `json:"mark"`
	WorkingDir  string    `json:"working_dir,omitempty"`
	LastShownAt time.Time `json:"last_shown_at"`
}
