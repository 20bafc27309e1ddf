//go:build !windows

package lifecycle

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/loykin/sidecar/internal/process"
)

func sleeper(t *testing.T) *process.Process {
	t.Helper()
	p, err := process.Start(process.Spec{Name: "runtime", Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = p.Kill() })
	return p
}

func TestInstall_ReplacesAndReapsPrevious(t *testing.T) {
	s := NewSlot(WithStopTimeout(time.Second))
	first := sleeper(t)
	s.Install(first)
	if s.Current() != first || s.PID() != first.PID() {
		t.Fatalf("first not installed")
	}

	second := sleeper(t)
	s.Install(second)
	if first.Alive() {
		t.Fatalf("previous process must be reaped before Install returns")
	}
	if s.Current() != second || !second.Alive() {
		t.Fatalf("second not installed")
	}
}

func TestInstall_NilClears(t *testing.T) {
	s := NewSlot()
	p := sleeper(t)
	s.Install(p)
	s.Install(nil)
	if p.Alive() || s.Current() != nil || s.PID() != 0 {
		t.Fatalf("slot not cleared: alive=%v current=%v", p.Alive(), s.Current())
	}
	// clearing an empty slot is fine
	s.Install(nil)
}

func TestInstall_AlreadyExitedPrevious(t *testing.T) {
	s := NewSlot()
	p, err := process.Start(process.Spec{Name: "quick", Path: "/bin/sh", Args: []string{"-c", "exit 3"}})
	if err != nil {
		t.Fatal(err)
	}
	s.Install(p)
	<-p.Done()
	s.Install(nil)
	if s.Current() != nil {
		t.Fatalf("slot not cleared")
	}
}

func TestInstall_PIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.pid")
	s := NewSlot(WithPIDFile(path))
	p := sleeper(t)
	s.Install(p)

	rec, err := process.ReadPIDFile(path)
	if err != nil || rec.PID != p.PID() || rec.Path != "/bin/sh" {
		t.Fatalf("rec=%+v err=%v", rec, err)
	}
	s.Install(nil)
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("pid file should be removed when the slot is cleared: %v", err)
	}
}

func TestInstall_ConcurrentNeverLeaks(t *testing.T) {
	s := NewSlot(WithStopTimeout(500 * time.Millisecond))
	const n = 6
	procs := make([]*process.Process, n)
	for i := range procs {
		procs[i] = sleeper(t)
	}
	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *process.Process) {
			defer wg.Done()
			s.Install(p)
		}(p)
	}
	wg.Wait()

	alive := 0
	for _, p := range procs {
		if p.Alive() {
			alive++
			if s.Current() != p {
				t.Fatalf("live process %d is not the owned one", p.PID())
			}
		}
	}
	if alive != 1 {
		t.Fatalf("expected exactly one live process, got %d", alive)
	}
}
