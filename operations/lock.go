package operations

import (
	"fmt"

	"github.com/gofrs/flock"
)

// DefaultLockPath is the lock file that keeps two runs on one host apart.
const DefaultLockPath = "/run/reident.lock"

// RunLock is the exclusive advisory lock held while identifiers are changed, by a run or by a
// restore.
type RunLock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock at path without waiting. It returns an error wrapping
// ErrRunInProgress when another process holds it. An empty path disables the lock.
func AcquireLock(path string) (*RunLock, error) {
	if path == "" {
		return &RunLock{}, nil
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s is held: %w", path, ErrRunInProgress)
	}

	return &RunLock{fl: fl}, nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	if l.fl == nil {
		return nil
	}

	return l.fl.Unlock()
}
