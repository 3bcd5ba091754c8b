package msa

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// DefaultCacheFile is where the file store keeps the credential record,
// relative to the working directory.
const DefaultCacheFile = "DevLoginCache.json"

// TokenStore persists the cached credential between runs. Load is called at
// most once per flow (at flow start), Save at most once (after a fresh
// successful login).
type TokenStore interface {
	Load() (*CachedCredential, error)
	Save(*CachedCredential) error
}

// FileStore keeps the credential in a small JSON file. Writes go through a
// lock file and an atomic rename so concurrent tool invocations cannot
// corrupt the cache.
type FileStore struct {
	Path string
}

func (s *FileStore) Load() (*CachedCredential, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var cred CachedCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential cache: %w", err)
	}
	return &cred, nil
}

func (s *FileStore) Save(cred *CachedCredential) error {
	lock, err := acquireCacheLock(s.Path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first, then atomically replace the old cache.
	tempFile := s.Path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, s.Path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err, removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// KeyringStore keeps the credential in the OS keyring instead of a file on
// disk. Service namespaces the entry so tests and parallel setups can
// isolate themselves.
type KeyringStore struct {
	Service string
	Key     string
}

// NewKeyringStore creates a KeyringStore under the given service name.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{Service: service, Key: "credential"}
}

func (s *KeyringStore) Load() (*CachedCredential, error) {
	secret, err := keyring.Get(s.Service, s.Key)
	if err != nil {
		return nil, err
	}
	var cred CachedCredential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return nil, fmt.Errorf("failed to parse keyring credential: %w", err)
	}
	return &cred, nil
}

func (s *KeyringStore) Save(cred *CachedCredential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return keyring.Set(s.Service, s.Key, string(data))
}
