//go:build !windows

package signalfile

import (
	"errors"
	"syscall"
)

// processAlive sends signal 0, which checks existence without delivering anything
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
