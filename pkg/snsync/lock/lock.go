// Package lock keeps two snsync runs from writing to the same device at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another snsync run is in progress")

// Lock is an advisory file lock.
type Lock struct {
	flock *flock.Flock
}

// New creates a lock backed by the file at path.
func New(path string) *Lock {
	return &Lock{flock: flock.New(path)}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Acquire takes the lock without waiting.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w (lock held on %s)", ErrAlreadyRunning, l.flock.Path())
	}
	return nil
}

// Release drops the lock and removes the lock file. It is a no-op if this
// process does not hold the lock.
func (l *Lock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.flock.Path(), err)
	}
	if err := os.Remove(l.flock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
