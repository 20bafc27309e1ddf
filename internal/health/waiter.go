package health

import (
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/sidecar/internal/metrics"
)

const (
	DefaultInterval = 140 * time.Millisecond
	DefaultTimeout  = 7 * time.Second
)

// Probe is a single best-effort health check.
type Probe interface {
	ProbeOnce() error
}

// Waiter polls a Probe with a fixed delay until it succeeds or the deadline passes.
type Waiter struct {
	Probe    Probe
	Interval time.Duration
}

func NewWaiter(p Probe) *Waiter {
	return &Waiter{Probe: p, Interval: DefaultInterval}
}

// WaitHealthy returns nil on the first successful probe. The deadline is measured
// as elapsed monotonic time, so slow probes still respect it. On timeout the
// returned *TimeoutError carries the last probe failure.
func (w *Waiter) WaitHealthy(timeout time.Duration) error {
	interval := valOr(w.Interval, DefaultInterval)
	started := time.Now()
	var last error = errors.New("no health response")
	attempts := 0

	for time.Since(started) < timeout {
		attempts++
		err := w.Probe.ProbeOnce()
		if err == nil {
			metrics.ObserveHealthWait(time.Since(started).Seconds(), true)
			slog.Debug("Health check passed", "attempts", attempts, "elapsed", time.Since(started))
			return nil
		}
		last = err
		metrics.IncProbeFailure()
		time.Sleep(interval)
	}

	metrics.ObserveHealthWait(time.Since(started).Seconds(), false)
	return &TimeoutError{Timeout: timeout, Attempts: attempts, Last: last}
}
