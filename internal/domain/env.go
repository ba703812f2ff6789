package domain

import (
	"fmt"
	"time"
)

// WorktreeEnvironment is the strongly typed record of the environment
// variables a launched process receives (Design Note: "Dynamic dict-driven
// env injection becomes a strongly typed record... with a to_env_pairs()
// that elides Nones").
type WorktreeEnvironment struct {
	AppID                string
	AppName              string
	Scope                Scope
	ProjectName          string
	ProjectDir           string
	ProjectDisplayName   string
	ProjectIcon          string
	TargetWorkspace      *int
	ExpectedClass        string
	IsWorktree           bool
	ParentProject        *string
	BranchType           *string
	BranchNumber         *int
	FullBranchName       *string
	LaunchTime           time.Time
	LauncherPID          int
	Scratchpad           bool
	WorkingDir           string
}

// ToEnvPairs renders e as I3PM_* environment variable pairs, eliding any
// unset optional field rather than emitting an empty string for it.
func (e WorktreeEnvironment) ToEnvPairs() []string {
	pairs := []string{
		"I3PM_APP_ID=" + e.AppID,
		"I3PM_APP_NAME=" + e.AppName,
		"I3PM_SCOPE=" + string(e.Scope),
		"I3PM_PROJECT_NAME=" + e.ProjectName,
		"I3PM_PROJECT_DIR=" + e.ProjectDir,
		"I3PM_PROJECT_DISPLAY_NAME=" + e.ProjectDisplayName,
		"I3PM_PROJECT_ICON=" + e.ProjectIcon,
		"I3PM_EXPECTED_CLASS=" + e.ExpectedClass,
		"I3PM_IS_WORKTREE=" + boolStr(e.IsWorktree),
		"I3PM_LAUNCH_TIME=" + e.LaunchTime.Format(time.RFC3339Nano),
		"I3PM_LAUNCHER_PID=" + fmt.Sprintf("%d", e.LauncherPID),
		"I3PM_SCRATCHPAD=" + boolStr(e.Scratchpad),
		"I3PM_WORKING_DIR=" + e.WorkingDir,
	}
	if e.TargetWorkspace != nil {
		pairs = append(pairs, fmt.Sprintf("I3PM_TARGET_WORKSPACE=%d", *e.TargetWorkspace))
	}
	if e.ParentProject != nil {
		pairs = append(pairs, "I3PM_PARENT_PROJECT="+*e.ParentProject)
	}
	if e.BranchType != nil {
		pairs = append(pairs, "I3PM_BRANCH_TYPE="+*e.BranchType)
	}
	if e.BranchNumber != nil {
		pairs = append(pairs, fmt.Sprintf("I3PM_BRANCH_NUMBER=%d", *e.BranchNumber))
	}
	if e.FullBranchName != nil {
		pairs = append(pairs, "I3PM_FULL_BRANCH_NAME="+*e.FullBranchName)
	}
	return pairs
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
