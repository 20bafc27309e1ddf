//go:build windows

package process

import (
	"errors"
	"os"
	"syscall"
)

const processQueryLimitedInformation = 0x1000

// Windows has no SIGTERM; both stop paths terminate the process.
func terminate(pid int) error { return kill(pid) }

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := syscall.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	_ = syscall.CloseHandle(h)
	return true
}

func isGone(err error) bool { return errors.Is(err, os.ErrProcessDone) }
