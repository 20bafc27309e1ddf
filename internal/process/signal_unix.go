//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// signalGroup signals the process group led by pid, falling back to pid
// alone when no such group exists.
func signalGroup(pid int, sig syscall.Signal) error {
	err := syscall.Kill(-pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, sig)
	}
	return err
}

func terminate(pid int) error { return signalGroup(pid, syscall.SIGTERM) }
func kill(pid int) error      { return signalGroup(pid, syscall.SIGKILL) }

func exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func isGone(err error) bool {
	return errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone)
}
