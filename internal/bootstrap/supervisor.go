// Package bootstrap brings the runtime server up, confirms it is healthy and
// reports the outcome as a status snapshot.
package bootstrap

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/sidecar/internal/health"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/launch"
	"github.com/loykin/sidecar/internal/lifecycle"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/status"
)

const (
	ShutDownMessage    = "supervisor is shut down"
	healthFailedPrefix = "Runtime started but failed health check: "

	sinkTimeout = 5 * time.Second
)

// Supervisor is what the host talks to. Every method is safe for concurrent use.
type Supervisor interface {
	// Bootstrap launches the runtime and waits for it to become healthy.
	Bootstrap() status.Snapshot
	// Retry stops any managed runtime, then bootstraps again.
	Retry() status.Snapshot
	// Status returns the latest completed outcome.
	Status() status.Snapshot
	// Shutdown stops the managed runtime. Later attempts are refused.
	Shutdown()
	// PID of the managed runtime, or 0.
	PID() int
}

// Spawner starts the runtime process.
type Spawner interface {
	Spawn() (launch.Outcome, error)
}

// HealthWaiter blocks until the runtime answers its health check or timeout elapses.
type HealthWaiter interface {
	WaitHealthy(timeout time.Duration) error
}

// ProductionSupervisor runs the full launch, health and install cycle.
type ProductionSupervisor struct {
	spawner Spawner
	waiter  HealthWaiter
	timeout time.Duration
	store   *status.Store
	slot    *lifecycle.Slot
	sinks   []history.Sink

	// attempt serializes Bootstrap, Retry and Shutdown. It is taken before
	// the slot or store locks, which never nest with each other.
	attempt sync.Mutex
	closed  bool
}

type Option func(*ProductionSupervisor)

func WithHealthTimeout(d time.Duration) Option {
	return func(s *ProductionSupervisor) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSlot(slot *lifecycle.Slot) Option {
	return func(s *ProductionSupervisor) { s.slot = slot }
}

func WithStore(store *status.Store) Option {
	return func(s *ProductionSupervisor) { s.store = store }
}

func WithSinks(sinks ...history.Sink) Option {
	return func(s *ProductionSupervisor) { s.sinks = append(s.sinks, sinks...) }
}

func NewProduction(spawner Spawner, waiter HealthWaiter, opts ...Option) *ProductionSupervisor {
	s := &ProductionSupervisor{
		spawner: spawner,
		waiter:  waiter,
		timeout: health.DefaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.store == nil {
		s.store = status.NewStore(status.Pending())
	}
	if s.slot == nil {
		s.slot = lifecycle.NewSlot()
	}
	return s
}

func (s *ProductionSupervisor) Bootstrap() status.Snapshot {
	s.attempt.Lock()
	defer s.attempt.Unlock()
	return s.run(history.TriggerStartup)
}

func (s *ProductionSupervisor) Retry() status.Snapshot {
	s.attempt.Lock()
	defer s.attempt.Unlock()
	if !s.closed {
		s.slot.Install(nil)
	}
	return s.run(history.TriggerRetry)
}

func (s *ProductionSupervisor) Status() status.Snapshot { return s.store.Read() }

func (s *ProductionSupervisor) PID() int { return s.slot.PID() }

func (s *ProductionSupervisor) Shutdown() {
	s.attempt.Lock()
	defer s.attempt.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.slot.Install(nil)

	snap := status.Failed(status.LaunchNone, ShutDownMessage)
	s.publish(snap)
	metrics.SetAvailable(false)
	history.Dispatch(s.sinks, history.NewEvent(history.TriggerShutdown, snap, 0), sinkTimeout)
	slog.Info("runtime supervisor shut down")
}

// run performs one attempt and publishes it. Callers hold s.attempt.
func (s *ProductionSupervisor) run(trigger history.Trigger) status.Snapshot {
	if s.closed {
		return status.Failed(status.LaunchNone, ShutDownMessage)
	}

	snap, pid := s.attemptOnce()
	s.publish(snap)

	metrics.IncBootstrap(string(trigger), string(snap.Status), string(snap.LaunchMode))
	metrics.SetAvailable(snap.Available)
	if snap.Available {
		slog.Info("runtime bootstrap ready", "trigger", trigger, "mode", snap.LaunchMode, "pid", pid, "warning", snap.Message)
	} else {
		slog.Error("runtime bootstrap unavailable", "trigger", trigger, "mode", snap.LaunchMode, "message", snap.Message)
	}
	history.Dispatch(s.sinks, history.NewEvent(trigger, snap, pid), sinkTimeout)
	return snap
}

func (s *ProductionSupervisor) attemptOnce() (status.Snapshot, int) {
	out, err := s.spawner.Spawn()
	if err != nil {
		return status.Failed(status.LaunchNone, err.Error()), 0
	}
	pid := out.Process.PID()

	if err := s.waiter.WaitHealthy(s.timeout); err != nil {
		// never installed, so it is ours to kill
		if kerr := out.Process.Kill(); kerr != nil {
			slog.Warn("kill unhealthy runtime", "pid", pid, "err", kerr)
		}
		return status.Failed(out.LaunchMode, healthFailure(out.Warning, err)), pid
	}

	snap := status.Ready(out.LaunchMode, out.Warning)
	s.slot.Install(out.Process)
	return snap, pid
}

func healthFailure(warning string, err error) string {
	if warning != "" {
		return warning + ". Health check failed: " + err.Error()
	}
	return healthFailedPrefix + err.Error()
}

func (s *ProductionSupervisor) publish(snap status.Snapshot) {
	if err := s.store.Write(snap); err != nil {
		slog.Error("publish runtime status", "err", err)
	}
}
