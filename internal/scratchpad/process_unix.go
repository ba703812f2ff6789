//go:build !windows

package scratchpad

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// detach configures cmd to run in its own session, surviving the
// daemon's own process group so a scratchpad terminal isn't killed by a
// signal sent to the daemon's group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// processAlive reports whether pid is a live process, via signal 0
// (POSIX "check existence, don't actually signal").
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}
