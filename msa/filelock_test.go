package msa

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestAcquireCacheLock(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	lock, err := acquireCacheLock(cachePath)
	if err != nil {
		t.Fatalf("acquireCacheLock() error = %v", err)
	}

	lockPath := cachePath + ".lock"
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Expected lock file to exist: %v", err)
	}
	if pid, err := strconv.Atoi(string(data)); err != nil || pid != os.Getpid() {
		t.Errorf("Expected lock file to hold our PID %d, got %q", os.Getpid(), data)
	}

	if err := lock.release(); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Expected lock file to be removed after release")
	}
}

func TestAcquireCacheLock_WaitsForHolder(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	held, err := acquireCacheLock(cachePath)
	if err != nil {
		t.Fatalf("acquireCacheLock() error = %v", err)
	}

	// Release the lock from another goroutine shortly after; the second
	// acquire should block until then, not fail.
	go func() {
		time.Sleep(300 * time.Millisecond)
		held.release()
	}()

	start := time.Now()
	lock, err := acquireCacheLock(cachePath)
	if err != nil {
		t.Fatalf("acquireCacheLock() while held error = %v", err)
	}
	defer lock.release()

	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Expected acquire to wait for the holder, returned after %v", elapsed)
	}
}

func TestAcquireCacheLock_SweepsStaleLock(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	lockPath := cachePath + ".lock"

	if err := os.WriteFile(lockPath, []byte("12345"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	// Backdate the lock past the staleness threshold.
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	lock, err := acquireCacheLock(cachePath)
	if err != nil {
		t.Fatalf("Expected stale lock to be swept, got error %v", err)
	}
	defer lock.release()

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) == "12345" {
		t.Error("Expected stale lock to be replaced with a fresh one")
	}
}
