package docindex

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// unlockLock is a test helper that unlocks and logs any error
func unlockLock(t *testing.T, lock *FileLock) {
	t.Helper()
	if err := lock.Unlock(); err != nil {
		t.Logf("Warning: Unlock failed: %v", err)
	}
}

// holdLock acquires a lock at path that is released when the test ends
func holdLock(t *testing.T, path string) *FileLock {
	t.Helper()
	lock := NewFileLock(path)
	acquired, err := lock.TryLock()
	if err != nil || !acquired {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	t.Cleanup(func() { unlockLock(t, lock) })
	return lock
}

func TestFileLock_TryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "index.lock")
	holder := holdLock(t, lockPath)

	if !holder.IsLocked() {
		t.Error("Expected IsLocked to return true")
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("Lock file should exist: %v", err)
	}

	other := NewFileLock(lockPath)
	acquired, err := other.TryLock()
	if err != nil {
		t.Fatalf("Second TryLock returned error: %v", err)
	}
	if acquired {
		t.Error("Expected second lock acquisition to fail")
		unlockLock(t, other)
	}
	if other.IsLocked() {
		t.Error("Expected second lock's IsLocked to return false")
	}
}

func TestFileLock_LockContext_Timeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "index.lock")
	holdLock(t, lockPath)

	lock := NewFileLock(lockPath)
	start := time.Now()
	err := lock.LockContext(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout, got: %v", err)
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected at least 100ms to elapse, got %v", elapsed)
	}
	if lock.IsLocked() {
		t.Error("Lock should not be held after timeout")
	}
}

func TestFileLock_LockContext_AcquiresAfterRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "index.lock")
	first := NewFileLock(lockPath)
	if acquired, err := first.TryLock(); err != nil || !acquired {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}

	second := NewFileLock(lockPath)
	var wg sync.WaitGroup
	var lockErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		lockErr = second.LockContext(context.Background(), 2*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	if err := first.Unlock(); err != nil {
		t.Fatalf("Failed to unlock first lock: %v", err)
	}
	wg.Wait()

	if lockErr != nil {
		t.Errorf("Expected second lock to succeed after release, got: %v", lockErr)
	}
	if !second.IsLocked() {
		t.Error("Expected second lock to be held")
	}
	unlockLock(t, second)
}

func TestFileLock_LockContext_Cancellation(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "index.lock")
	holdLock(t, lockPath)

	ctx, cancel := context.WithCancel(context.Background())
	lock := NewFileLock(lockPath)

	var wg sync.WaitGroup
	var lockErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		lockErr = lock.LockContext(ctx, 10*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	wg.Wait()

	if !errors.Is(lockErr, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", lockErr)
	}
}

func TestFileLock_Unlock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "index.lock")

	lock := NewFileLock(lockPath)
	if err := lock.Unlock(); err != nil {
		t.Errorf("Expected no error for no-op unlock, got: %v", err)
	}

	if acquired, err := lock.TryLock(); err != nil || !acquired {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Errorf("Second unlock should be no-op, got: %v", err)
	}
	if lock.IsLocked() {
		t.Error("Expected IsLocked to return false after unlock")
	}

	// Should be able to acquire again
	holdLock(t, lockPath)
}

func TestFileLock_Path(t *testing.T) {
	lockPath := "/some/path/to/index.lock"
	if got := NewFileLock(lockPath).Path(); got != lockPath {
		t.Errorf("Path() = %q, want %q", got, lockPath)
	}
}

func TestFileLock_ConcurrentGoroutines(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "concurrent.lock")

	const numGoroutines = 8
	const opsPerGoroutine = 4

	var mu sync.Mutex
	holders, total := 0, 0

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				lock := NewFileLock(lockPath)
				if err := lock.LockContext(context.Background(), 5*time.Second); err != nil {
					t.Errorf("Lock failed: %v", err)
					return
				}

				mu.Lock()
				holders++
				if holders > 1 {
					t.Error("Lock held by more than one goroutine")
				}
				total++
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				holders--
				mu.Unlock()

				if err := lock.Unlock(); err != nil {
					t.Errorf("Unlock failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if want := numGoroutines * opsPerGoroutine; total != want {
		t.Errorf("Expected %d successful operations, got %d", want, total)
	}
}

func TestFileLock_CrossProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping cross-process test in short mode")
	}
	if _, err := exec.LookPath("flock"); err != nil {
		t.Skip("Skipping cross-process test: flock command not available")
	}

	lockPath := filepath.Join(t.TempDir(), "crossprocess.lock")
	lock := holdLock(t, lockPath)

	probe := func() string {
		cmd := exec.Command("sh", "-c", `flock -n "$1" -c "echo acquired" 2>/dev/null || echo "blocked"`, "_", lockPath)
		output, err := cmd.Output()
		if err != nil {
			t.Fatalf("Child process failed: %v", err)
		}
		return string(output)
	}

	if got := probe(); got != "blocked\n" {
		t.Errorf("Expected child to be blocked, got: %q", got)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
	if got := probe(); got != "acquired\n" {
		t.Errorf("Expected child to acquire lock, got: %q", got)
	}
}
