// Package lifecycle owns the single managed runtime process.
package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/process"
)

const DefaultStopTimeout = 3 * time.Second

// Slot holds at most one process. Install is the only way to change it.
type Slot struct {
	mu          sync.Mutex
	current     *process.Process
	stopTimeout time.Duration
	pidFile     string
}

type Option func(*Slot)

// WithStopTimeout sets how long a replaced process gets to exit after SIGTERM.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Slot) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithPIDFile records the installed process in path so a later run can reap it.
func WithPIDFile(path string) Option {
	return func(s *Slot) { s.pidFile = path }
}

func NewSlot(opts ...Option) *Slot {
	s := &Slot{stopTimeout: DefaultStopTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Install stops and reaps the owned process, if any, then takes ownership of
// next. next may be nil to leave the slot empty. Stop failures of an already
// exited process are ignored.
func (s *Slot) Install(next *process.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.current; prev != nil {
		s.current = nil
		if err := prev.Stop(s.stopTimeout); err != nil {
			slog.Warn("stop managed runtime", "pid", prev.PID(), "err", err)
		}
		metrics.IncStop()
		slog.Info("managed runtime stopped", "pid", prev.PID())
	}
	if s.pidFile != "" {
		if err := process.RemovePIDFile(s.pidFile); err != nil {
			slog.Warn("remove pid file", "path", s.pidFile, "err", err)
		}
	}
	if next == nil {
		return
	}

	s.current = next
	metrics.IncInstall()
	if s.pidFile != "" {
		if err := process.WritePIDFile(s.pidFile, next.Record()); err != nil {
			slog.Warn("write pid file", "path", s.pidFile, "err", err)
		}
	}
	slog.Info("managed runtime installed", "pid", next.PID())
}

// Current returns the owned process or nil. The caller must not stop it;
// use Install(nil) instead.
func (s *Slot) Current() *process.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PID returns the owned process id, or 0 when the slot is empty.
func (s *Slot) PID() int {
	if p := s.Current(); p != nil {
		return p.PID()
	}
	return 0
}
