// Package process owns a single spawned runtime child: start, liveness,
// graceful stop with escalation, and reaping.
package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var ErrNoPath = errors.New("process path is empty")

// killWait bounds how long Kill waits for the reaper after SIGKILL when
// the signal itself reported an error.
const killWait = 2 * time.Second

// Process is a started child. Exactly one goroutine waits on the child;
// everyone else observes Done.
type Process struct {
	spec      Spec
	pid       int
	startedAt time.Time
	startUnix int64

	done    chan struct{}
	mu      sync.Mutex
	exitErr error
	closers []io.Closer
}

// Start launches spec in its own process group and begins reaping it in the background.
func Start(spec Spec) (*Process, error) {
	if spec.Path == "" {
		return nil, ErrNoPath
	}
	cmd, closers, err := spec.command()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		closeAll(closers)
		return nil, err
	}

	p := &Process{
		spec:      spec,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		closers:   closers,
	}
	p.startUnix = startUnix(p.pid)
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		cs := p.closers
		p.closers = nil
		p.mu.Unlock()
		closeAll(cs)
		close(p.done)
		slog.Debug("runtime process exited", "name", spec.Name, "pid", p.pid, "err", err)
	}()
	return p, nil
}

func (p *Process) PID() int             { return p.pid }
func (p *Process) Name() string         { return p.spec.Name }
func (p *Process) Spec() Spec           { return p.spec }
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Alive reports whether the child has not yet been reaped.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the result of Wait. It is nil while the child is running.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Record describes the child for the pid file.
func (p *Process) Record() Record {
	return Record{PID: p.pid, StartUnix: p.startUnix, Path: p.spec.Path, Args: p.spec.Args}
}

// Stop asks the process group to terminate and escalates to Kill after grace.
// It returns once the child has been reaped.
func (p *Process) Stop(grace time.Duration) error {
	if !p.Alive() {
		return nil
	}
	if err := terminate(p.pid); err != nil && !isGone(err) {
		slog.Warn("terminate runtime process", "pid", p.pid, "err", err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}
	return p.Kill()
}

// Kill force-terminates the process group and waits for the reaper.
// Killing an already exited child is not an error.
func (p *Process) Kill() error {
	if !p.Alive() {
		return nil
	}
	err := kill(p.pid)
	if err == nil || isGone(err) {
		<-p.done
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("kill pid %d: %w", p.pid, err)
	}
}
