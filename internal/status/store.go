package status

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLockPoisoned is returned once a mutation panicked while holding the store guard.
var ErrLockPoisoned = errors.New("runtime status lock poisoned")

// Store holds the latest bootstrap outcome.
// Readers get a copy; writers replace the value under a short critical section.
type Store struct {
	mu       sync.RWMutex
	current  Snapshot
	poisoned bool
}

func NewStore(initial Snapshot) *Store {
	return &Store{current: initial}
}

// Read returns the last written snapshot. If the guard was poisoned by a
// panicking Update, a synthetic error snapshot is returned instead.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.poisoned {
		return Failed(LaunchUnknown, "Runtime status lock poisoned.")
	}
	return s.current
}

// Write replaces the stored snapshot. Writes are dropped after poisoning.
func (s *Store) Write(snap Snapshot) error {
	return s.Update(func(Snapshot) Snapshot { return snap })
}

// Update derives the next snapshot from the current one under the guard.
// A panic inside fn poisons the store and is returned as ErrLockPoisoned.
func (s *Store) Update(fn func(Snapshot) Snapshot) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		return ErrLockPoisoned
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			err = fmt.Errorf("%w: %v", ErrLockPoisoned, r)
		}
	}()
	next := fn(s.current)
	s.current = next
	return nil
}

// Poisoned reports whether the guard has been corrupted.
func (s *Store) Poisoned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poisoned
}
