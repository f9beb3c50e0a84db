package filesystem

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside a directory to mark it in use by a run
const LockFileName = ".video-transcriber.lock"

// ErrLocked is returned when another run holds the directory lock
var ErrLocked = errors.New("directory is in use by another run")

// Locker takes exclusive advisory locks on directories
type Locker struct{}

// NewLocker creates a new directory locker
func NewLocker() *Locker {
	return &Locker{}
}

// Lock acquires the lock file in dir without blocking
func (l *Locker) Lock(dir string) (func() error, error) {
	lockPath := filepath.Join(dir, LockFileName)
	lock := flock.New(lockPath)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	return lock.Unlock, nil
}
