//go:build !windows

package config

import "syscall"

// isProcessAlive reports whether a process with the given PID exists.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 checks for existence without delivering anything.
	return syscall.Kill(pid, 0) == nil
}
