// internal/state/credentials.go
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/1-kabir/cfm/pkg/backend"
)

// CredentialKey is the fixed key the credential is persisted under.
const CredentialKey = "cfm_auth"

// ErrNoCredential is returned by Load when nothing has been persisted.
var ErrNoCredential = errors.New("no stored credential")

// CredentialStore is a JSON-file-backed credential store.
// It keeps a small key/value document at credentials.json under the root,
// readable only by the owner.
type CredentialStore struct {
	root string
	mu   sync.RWMutex
}

// NewCredentialStore creates a file-backed CredentialStore rooted at the given directory.
func NewCredentialStore(root string) *CredentialStore {
	return &CredentialStore{root: root}
}

func (s *CredentialStore) path() string {
	return filepath.Join(s.root, "credentials.json")
}

// loadAll reads credentials.json into a map. A missing file yields an empty map.
func (s *CredentialStore) loadAll() (map[string]string, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return values, nil
}

// saveAll marshals with indentation and writes atomically.
func (s *CredentialStore) saveAll(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp credentials: %w", err)
	}
	return nil
}

// Load returns the persisted credential or ErrNoCredential.
func (s *CredentialStore) Load(_ context.Context) (backend.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.loadAll()
	if err != nil {
		return "", err
	}
	token, ok := values[CredentialKey]
	if !ok || token == "" {
		return "", ErrNoCredential
	}
	return backend.Token(token), nil
}

// Save persists the credential, replacing any previous one.
func (s *CredentialStore) Save(_ context.Context, token backend.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.loadAll()
	if err != nil {
		return err
	}
	values[CredentialKey] = string(token)
	return s.saveAll(values)
}

// Delete purges the persisted credential. Deleting when nothing is stored is not an error.
func (s *CredentialStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.loadAll()
	if err != nil {
		return err
	}
	if _, ok := values[CredentialKey]; !ok {
		return nil
	}
	delete(values, CredentialKey)
	if len(values) == 0 {
		if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove credentials: %w", err)
		}
		return nil
	}
	return s.saveAll(values)
}
