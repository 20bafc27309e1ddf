// Package history exports bootstrap outcomes to external stores.
package history

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/sidecar/internal/status"
)

// Trigger names what started a bootstrap attempt.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerRetry    Trigger = "retry"
	TriggerShutdown Trigger = "shutdown"
)

// DefaultTable is used by the SQL and ClickHouse sinks.
const DefaultTable = "bootstrap_history"

// Event records one completed bootstrap, retry or shutdown.
type Event struct {
	ID         string          `json:"id"`
	Trigger    Trigger         `json:"trigger"`
	OccurredAt time.Time       `json:"occurred_at"`
	PID        int             `json:"pid"`
	Snapshot   status.Snapshot `json:"snapshot"`
}

func NewEvent(trigger Trigger, snap status.Snapshot, pid int) Event {
	return Event{ID: uuid.NewString(), Trigger: trigger, OccurredAt: time.Now().UTC(), PID: pid, Snapshot: snap}
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Dispatch sends e to every sink within timeout. Failures are logged and
// otherwise ignored; history never affects the supervisor.
func Dispatch(sinks []Sink, e Event, timeout time.Duration) {
	if len(sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, s := range sinks {
		if err := s.Send(ctx, e); err != nil {
			slog.Warn("history sink send failed", "trigger", e.Trigger, "err", err)
		}
	}
}

// CloseAll closes every sink that implements io.Closer.
func CloseAll(sinks []Sink) {
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("history sink close failed", "err", err)
			}
		}
	}
}
