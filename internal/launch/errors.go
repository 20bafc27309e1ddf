package launch

import "fmt"

// SpawnError means the OS could not start a resolved command.
type SpawnError struct {
	Strategy string
	Command  string
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s %q: %v", e.Strategy, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// CombinedError carries both the preferred and the fallback failure.
type CombinedError struct {
	Primary  error
	Fallback error
}

func (e *CombinedError) Error() string {
	return fmt.Sprintf("preferred sidecar launch failed: %v; fallback host runtime launch failed: %v", e.Primary, e.Fallback)
}

func (e *CombinedError) Unwrap() []error { return []error{e.Primary, e.Fallback} }
