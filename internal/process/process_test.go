//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

type captureWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *captureWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *captureWriter) snapshot() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String(), w.closed
}

func waitDone(t *testing.T, p *Process, d time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(d):
		t.Fatalf("process %d not reaped within %v", p.PID(), d)
	}
}

func TestStart_EmptyPath(t *testing.T) {
	if _, err := Start(Spec{Name: "x"}); !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
}

func TestStart_MissingExecutable(t *testing.T) {
	_, err := Start(Spec{Name: "x", Path: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatalf("expected start error for missing executable")
	}
}

func TestStart_AliveThenStop(t *testing.T) {
	p, err := Start(Spec{Name: "sleeper", Path: "/bin/sh", Args: []string{"-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.PID() <= 0 || !p.Alive() {
		t.Fatalf("expected live child, pid=%d", p.PID())
	}
	if p.Record().StartUnix == 0 {
		t.Fatalf("expected start time to be recorded")
	}

	start := time.Now()
	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.Alive() {
		t.Fatalf("process still alive after Stop")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("SIGTERM should have been enough, took %v", time.Since(start))
	}
	if exists(p.PID()) {
		t.Fatalf("pid %d still exists after reap", p.PID())
	}
}

func TestStop_EscalatesToKill(t *testing.T) {
	p, err := Start(Spec{Name: "stubborn", Path: "/bin/sh", Args: []string{"-c", `trap "" TERM; sleep 30`}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// give the shell time to install the trap
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := p.Stop(150 * time.Millisecond); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.Alive() {
		t.Fatalf("process survived escalation")
	}
	if el := time.Since(start); el < 150*time.Millisecond {
		t.Fatalf("stop returned before grace elapsed: %v", el)
	}
	var ee *exec.ExitError
	if !errors.As(p.ExitErr(), &ee) {
		t.Fatalf("expected exit error after kill, got %v", p.ExitErr())
	}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signal() != syscall.SIGKILL {
		t.Fatalf("expected SIGKILL, got %v", ws.Signal())
	}
}

func TestStop_KillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	childPID := filepath.Join(dir, "child.pid")
	script := "sleep 30 & echo $! > " + childPID + "; wait"
	p, err := Start(Spec{Name: "group", Path: "/bin/sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	var rec Record
	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec, err = ReadPIDFile(childPID); err == nil && rec.PID > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("grandchild pid never written: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for exists(rec.PID) && !zombie(rec.PID) {
		if time.Now().After(deadline) {
			t.Fatalf("grandchild %d survived group stop", rec.PID)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// zombie reports a dead but unreaped pid; the grandchild is reparented and
// its reaping is out of our hands.
func zombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	s := string(b)
	i := strings.LastIndex(s, ") ")
	return i >= 0 && strings.HasPrefix(s[i+2:], "Z")
}

func TestKill_AfterExitIsNoop(t *testing.T) {
	p, err := Start(Spec{Name: "quick", Path: "/bin/sh", Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, 2*time.Second)
	if err := p.Kill(); err != nil {
		t.Fatalf("kill after exit: %v", err)
	}
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("stop after exit: %v", err)
	}
	if p.ExitErr() != nil {
		t.Fatalf("expected clean exit, got %v", p.ExitErr())
	}
}

func TestStart_CapturesOutputAndClosesWriters(t *testing.T) {
	out, errw := &captureWriter{}, &captureWriter{}
	p, err := Start(Spec{
		Name:   "echo",
		Path:   "/bin/sh",
		Args:   []string{"-c", "echo hello; echo oops 1>&2"},
		Stdout: out,
		Stderr: errw,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, 3*time.Second)
	if s, closed := out.snapshot(); !strings.Contains(s, "hello") || !closed {
		t.Fatalf("stdout=%q closed=%v", s, closed)
	}
	if s, closed := errw.snapshot(); !strings.Contains(s, "oops") || !closed {
		t.Fatalf("stderr=%q closed=%v", s, closed)
	}
}

func TestStart_EnvAndWorkDir(t *testing.T) {
	dir := t.TempDir()
	out := &captureWriter{}
	p, err := Start(Spec{
		Name:    "env",
		Path:    "/bin/sh",
		Args:    []string{"-c", `echo "$NEURAL_OS_SERVER_PORT $(pwd)"`},
		WorkDir: dir,
		Env:     []string{"NEURAL_OS_SERVER_PORT=8787", "PATH=" + os.Getenv("PATH")},
		Stdout:  out,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, 3*time.Second)
	s, _ := out.snapshot()
	wantDir, _ := filepath.EvalSymlinks(dir)
	if !strings.Contains(s, "8787") || !strings.Contains(s, wantDir) {
		t.Fatalf("unexpected output %q (want port and %s)", s, wantDir)
	}
}

func TestSpecString(t *testing.T) {
	if got := (Spec{Path: "node"}).String(); got != "node" {
		t.Fatalf("got %q", got)
	}
	if got := (Spec{Path: "node", Args: []string{"server.mjs"}}).String(); got != "node server.mjs" {
		t.Fatalf("got %q", got)
	}
}
