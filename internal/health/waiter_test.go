package health

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProbe struct {
	calls    atomic.Int32
	failFor  int32 // number of initial failures; -1 fails forever
	failWith error
}

func (f *fakeProbe) ProbeOnce() error {
	n := f.calls.Add(1)
	if f.failFor < 0 || n <= f.failFor {
		return f.failWith
	}
	return nil
}

func TestWaitHealthy_ImmediateSuccess(t *testing.T) {
	p := &fakeProbe{}
	w := NewWaiter(p)
	start := time.Now()
	if err := w.WaitHealthy(7 * time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("success should not wait for the deadline, took %v", elapsed)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("expected one probe, got %d", p.calls.Load())
	}
}

func TestWaitHealthy_SucceedsAfterFailures(t *testing.T) {
	p := &fakeProbe{failFor: 2, failWith: errors.New("connect failed: refused")}
	w := &Waiter{Probe: p, Interval: 10 * time.Millisecond}
	if err := w.WaitHealthy(2 * time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if p.calls.Load() != 3 {
		t.Fatalf("expected 3 probes, got %d", p.calls.Load())
	}
}

func TestWaitHealthy_TimeoutCarriesLastError(t *testing.T) {
	p := &fakeProbe{failFor: -1, failWith: errors.New("health probe returned 'HTTP/1.1 503'")}
	w := &Waiter{Probe: p, Interval: 20 * time.Millisecond}
	timeout := 250 * time.Millisecond
	start := time.Now()
	err := w.WaitHealthy(timeout)
	elapsed := time.Since(start)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if elapsed < timeout {
		t.Fatalf("returned before deadline: %v < %v", elapsed, timeout)
	}
	if te.Error() != "health probe returned 'HTTP/1.1 503'" {
		t.Fatalf("unexpected reason %q", te.Error())
	}
	if te.Attempts < 2 {
		t.Fatalf("expected several attempts, got %d", te.Attempts)
	}
}

type slowProbe struct{ d time.Duration }

func (s slowProbe) ProbeOnce() error {
	time.Sleep(s.d)
	return errors.New("slow")
}

func TestWaitHealthy_DeadlineIsElapsedTime(t *testing.T) {
	w := &Waiter{Probe: slowProbe{d: 120 * time.Millisecond}, Interval: time.Millisecond}
	start := time.Now()
	_ = w.WaitHealthy(200 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("deadline not respected with slow probes: %v", elapsed)
	}
}
