//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"syscall"
)

// ProcessAlive reports whether a process with the given PID exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks existence without delivering anything.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means it exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}
