package docindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	// LockFilename is the name of the index build lock file
	LockFilename = "index.lock"

	minLockPoll = 10 * time.Millisecond
	maxLockPoll = 500 * time.Millisecond
)

// ErrLockTimeout indicates the lock acquisition timed out
var ErrLockTimeout = errors.New("lock acquisition timed out")

// FileLock is an exclusive flock(2) lock coordinating index builds between
// server processes sharing a base directory. The kernel releases it when
// the holding process exits.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a new file lock at the given path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking.
// Contention is reported as (false, nil).
func (l *FileLock) TryLock() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}

	acquired, err := l.flock()
	if !acquired {
		l.release()
	}
	return acquired, err
}

// LockContext blocks until the lock is acquired, timeout expires
// (ErrLockTimeout) or ctx is done.
func (l *FileLock) LockContext(ctx context.Context, timeout time.Duration) error {
	if err := l.open(); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	poll := minLockPoll
	for {
		acquired, err := l.flock()
		if acquired {
			return nil
		}
		if err != nil {
			l.release()
			return err
		}

		select {
		case <-ctx.Done():
			l.release()
			return ctx.Err()
		case <-timer.C:
			l.release()
			return ErrLockTimeout
		case <-time.After(poll):
			poll = min(poll*2, maxLockPoll)
		}
	}
}

// Unlock releases the lock. Unlocking an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

// IsLocked returns true if the lock is currently held by this instance.
func (l *FileLock) IsLocked() bool {
	return l.file != nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// flock makes one non-blocking acquisition attempt.
func (l *FileLock) flock() (bool, error) {
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, syscall.EWOULDBLOCK):
		return false, nil
	default:
		return false, fmt.Errorf("flock failed: %w", err)
	}
}

// open creates the lock file and its parent directories if needed.
func (l *FileLock) open() error {
	if l.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = file
	return nil
}

func (l *FileLock) release() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}
