//go:build windows

package signalfile

import "os"

// processAlive succeeds when a handle can be opened for pid
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
