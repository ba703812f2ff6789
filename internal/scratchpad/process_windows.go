//go:build windows

package scratchpad

import (
	"errors"
	"os/exec"
)

// ErrUnsupported names the scratchpad's unsupported-platform error for
// platforms i3/Sway don't run on. The stubs below do not return it: detach
// does nothing and processAlive always reports false.
var ErrUnsupported = errors.New("scratchpad: unsupported on windows")

func detach(cmd *exec.Cmd) {}

func processAlive(pid int) bool { return false }
