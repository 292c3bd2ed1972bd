// Package filestore persists the credential of a single-client process in a JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/ports"
)

const (
	dirName         = ".schoolhub"
	credentialsFile = "credentials.json"
	clientsDir      = "clients"
)

// CredentialStore implements ports.CredentialStore using a JSON file.
type CredentialStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

type fileCredential struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// DefaultPath returns $HOME/.schoolhub/credentials.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, dirName, credentialsFile), nil
}

// DirStores hands out one file store per client context, all inside one directory.
type DirStores struct {
	dir string
}

// NewDirStores creates dir with 0700 permissions. An empty dir selects $HOME/.schoolhub/clients.
func NewDirStores(dir string) (*DirStores, error) {
	if strings.TrimSpace(dir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, dirName, clientsDir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &DirStores{dir: dir}, nil
}

// For returns the store of clientID. Path separators in clientID are stripped.
func (d *DirStores) For(clientID string) ports.CredentialStore {
	name := filepath.Base(filepath.Clean("/" + clientID))
	return &CredentialStore{path: filepath.Join(d.dir, name+".json"), now: time.Now}
}

// New creates a store at path, creating its directory with 0700 permissions.
// An empty path selects DefaultPath.
func New(path string) (*CredentialStore, error) {
	if strings.TrimSpace(path) == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &CredentialStore{path: path, now: time.Now}, nil
}

// Path returns the backing file.
func (s *CredentialStore) Path() string { return s.path }

// Get reads the stored credential.
func (s *CredentialStore) Get(_ context.Context) (domainauth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domainauth.ErrNoCredential
		}
		return "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	var fc fileCredential
	if err := json.Unmarshal(data, &fc); err != nil {
		return "", fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	cred := domainauth.Credential(fc.Token)
	if cred.IsZero() {
		return "", domainauth.ErrNoCredential
	}
	return cred, nil
}

// Set replaces the stored credential. The file is written beside the target and renamed over it.
func (s *CredentialStore) Set(_ context.Context, cred domainauth.Credential) error {
	if cred.IsZero() {
		return errors.New("refusing to store an empty credential")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(fileCredential{Token: cred.Token(), SavedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), credentialsFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to chmod credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close credentials file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// Clear deletes the credentials file. A missing file is not an error.
func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete credentials file: %w", err)
	}
	return nil
}
