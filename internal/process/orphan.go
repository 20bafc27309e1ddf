package process

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

const orphanPoll = 50 * time.Millisecond

// ReapOrphan stops a runtime left behind by an earlier supervisor run, as
// recorded in pidFile. The pid must still be alive, must have the recorded
// start time, and its command line must mention the recorded program;
// otherwise the pid was reused and nothing is signalled. The pid file is
// removed in every case. It returns the pid that was stopped, or 0.
func ReapOrphan(pidFile string, grace time.Duration) (int, error) {
	if pidFile == "" {
		return 0, nil
	}
	rec, err := ReadPIDFile(pidFile)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	defer func() { _ = RemovePIDFile(pidFile) }()
	if err != nil {
		return 0, err
	}
	if !exists(rec.PID) || !ownedBy(rec) {
		return 0, nil
	}

	slog.Info("stopping orphaned runtime process", "pid", rec.PID, "path", rec.Path)
	if err := terminate(rec.PID); err != nil && !isGone(err) {
		return 0, err
	}
	if waitGone(rec.PID, grace) {
		return rec.PID, nil
	}
	if err := kill(rec.PID); err != nil && !isGone(err) {
		return 0, err
	}
	waitGone(rec.PID, grace)
	return rec.PID, nil
}

func ownedBy(rec Record) bool {
	if rec.StartUnix != 0 {
		if st := startUnix(rec.PID); st != 0 && absDiff(st, rec.StartUnix) > 1 {
			return false
		}
	}
	if rec.Path == "" {
		return rec.StartUnix != 0
	}
	p, err := gopsproc.NewProcess(int32(rec.PID))
	if err != nil {
		return false
	}
	cmdline, err := p.Cmdline()
	if err != nil {
		return false
	}
	return strings.Contains(cmdline, filepath.Base(rec.Path))
}

func waitGone(pid int, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for exists(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(orphanPoll)
	}
	return true
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
