package storage

import (
	"errors"
	"os"
)

// ErrWouldBlock signals that a non-blocking lock attempt failed because
// another process (or another handle in this process) holds the lock.
var ErrWouldBlock = errors.New("file lock would block")

// AcquireLockHandle tries to take the exclusive lock at path without
// blocking. ok is false, with a nil error, if the lock is held elsewhere.
func AcquireLockHandle(path string) (f *os.File, ok bool, err error) {
	f, err = acquireFileLock(path)
	if err != nil {
		if f != nil {
			_ = f.Close()
		}
		if errors.Is(err, ErrWouldBlock) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return f, true, nil
}

// ReleaseLockHandle unlocks f and removes the lock file.
func ReleaseLockHandle(f *os.File) error { return releaseFileLock(f) }
