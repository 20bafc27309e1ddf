package health

import (
	"fmt"
	"time"
)

// ProbeError describes why a single health probe failed.
type ProbeError struct {
	Op         string // connect, request, read, status
	StatusLine string // set when Op == "status"
	Err        error
}

func (e *ProbeError) Error() string {
	switch e.Op {
	case "connect":
		return fmt.Sprintf("connect failed: %v", e.Err)
	case "request":
		return fmt.Sprintf("request failed: %v", e.Err)
	case "read":
		return fmt.Sprintf("response read failed: %v", e.Err)
	case "status":
		return fmt.Sprintf("health probe returned '%s'", e.StatusLine)
	default:
		return fmt.Sprintf("health probe failed: %v", e.Err)
	}
}

func (e *ProbeError) Unwrap() error { return e.Err }

// TimeoutError is returned by the waiter when no probe succeeded before the deadline.
// Its message is the last observed probe failure.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	if e.Last == nil {
		return "no health response"
	}
	return e.Last.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Last }
