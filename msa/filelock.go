package msa

import (
	"fmt"
	"os"
	"time"
)

// cacheLock coordinates credential-cache writes across processes through a
// separate lock file next to the cache.
type cacheLock struct {
	lockFile *os.File
	lockPath string
}

// acquireCacheLock takes an exclusive lock on the credential cache at
// cachePath, waiting for a concurrent holder and sweeping stale locks left
// by crashed processes.
func acquireCacheLock(cachePath string) (*cacheLock, error) {
	lockPath := cachePath + ".lock"
	maxRetries := 50
	retryDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		// Creating the lock file exclusively fails if it already exists.
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// Write our PID to the lock file for debugging.
			fmt.Fprintf(lockFile, "%d", os.Getpid())
			return &cacheLock{
				lockFile: lockFile,
				lockPath: lockPath,
			}, nil
		}

		if os.IsExist(err) {
			// A lock older than 30 seconds is considered stale.
			if info, statErr := os.Stat(lockPath); statErr == nil {
				age := time.Since(info.ModTime())
				if age > 30*time.Second {
					if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
						return nil, fmt.Errorf(
							"failed to remove stale lock file %s: %w",
							lockPath, remErr,
						)
					}
					continue
				}
			}

			// Held by another process, wait and retry.
			time.Sleep(retryDelay)
			continue
		}

		return nil, fmt.Errorf("failed to acquire cache lock: %w", err)
	}

	return nil, fmt.Errorf(
		"timeout waiting for cache lock after %v",
		time.Duration(maxRetries)*retryDelay,
	)
}

// release releases the lock.
func (cl *cacheLock) release() error {
	if cl.lockFile != nil {
		cl.lockFile.Close()
	}
	return os.Remove(cl.lockPath)
}
