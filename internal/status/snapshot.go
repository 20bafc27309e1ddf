package status

import "time"

// Status is the observable bootstrap state.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// LaunchMode records which launch strategy produced the current process.
type LaunchMode string

const (
	LaunchNone                LaunchMode = "none"
	LaunchSidecarBundled      LaunchMode = "sidecarBundled"
	LaunchFallbackHostRuntime LaunchMode = "fallbackHostRuntime"
	LaunchDevExternal         LaunchMode = "devExternal"
	LaunchUnknown             LaunchMode = "unknown"
)

// PendingMessage is reported until the first bootstrap attempt completes.
const PendingMessage = "Runtime bootstrap has not completed yet."

// Snapshot is an immutable view of the supervisor's belief about server availability.
// It is always passed by value; the Store replaces it wholesale.
type Snapshot struct {
	Available       bool       `json:"available"`
	Status          Status     `json:"status"`
	LaunchMode      LaunchMode `json:"launchMode"`
	Message         string     `json:"message,omitempty"`
	CheckedAtMillis uint64     `json:"checkedAtMillis"`
}

// now is replaced in tests.
var now = time.Now

func nowMillis() uint64 {
	ms := now().UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

// New stamps a snapshot with the current wall-clock time.
func New(available bool, st Status, mode LaunchMode, message string) Snapshot {
	return Snapshot{
		Available:       available,
		Status:          st,
		LaunchMode:      mode,
		Message:         message,
		CheckedAtMillis: nowMillis(),
	}
}

func Pending() Snapshot { return New(false, StatusPending, LaunchNone, PendingMessage) }

// DevExternal is reported when the backend is supervised outside this process.
func DevExternal() Snapshot { return New(true, StatusReady, LaunchDevExternal, "") }

// Ready reports a healthy managed process. warning is non-empty for degraded launches.
func Ready(mode LaunchMode, warning string) Snapshot {
	return New(true, StatusReady, mode, warning)
}

func Failed(mode LaunchMode, message string) Snapshot {
	return New(false, StatusError, mode, message)
}

// CheckedAt converts CheckedAtMillis back to a time.Time.
func (s Snapshot) CheckedAt() time.Time {
	return time.UnixMilli(int64(s.CheckedAtMillis))
}
