//go:build windows

package config

import "os"

// isProcessAlive reports whether a process with the given PID exists.
// FindProcess succeeds for any PID on Windows, so this is best-effort.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
