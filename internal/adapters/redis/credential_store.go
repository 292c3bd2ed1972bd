// Package redis provides Redis-backed credential storage for portal client contexts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/ports"
)

// DefaultKeyPrefix namespaces credential keys.
const DefaultKeyPrefix = "portal:credential:"

// CredentialStore keeps one client context's credential under prefix+clientID.
// The key expires after TTL; every Set restarts the clock.
type CredentialStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

type storedCredential struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// CredentialStores hands out per-client stores sharing one Redis client.
type CredentialStores struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCredentialStores creates a factory. An empty prefix selects DefaultKeyPrefix;
// a zero ttl stores keys without expiry.
func NewCredentialStores(client redis.UniversalClient, prefix string, ttl time.Duration) *CredentialStores {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &CredentialStores{client: client, prefix: prefix, ttl: ttl}
}

// For returns the store of clientID.
func (f *CredentialStores) For(clientID string) ports.CredentialStore {
	return &CredentialStore{
		client: f.client,
		key:    f.prefix + clientID,
		ttl:    f.ttl,
		now:    time.Now,
	}
}

func (s *CredentialStore) Get(ctx context.Context) (domainauth.Credential, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domainauth.ErrNoCredential
		}
		return "", fmt.Errorf("redis get: %w", err)
	}

	var sc storedCredential
	if unmarshalErr := json.Unmarshal([]byte(data), &sc); unmarshalErr != nil {
		return "", fmt.Errorf("unmarshal credential: %w", unmarshalErr)
	}
	cred := domainauth.Credential(sc.Token)
	if cred.IsZero() {
		return "", domainauth.ErrNoCredential
	}
	return cred, nil
}

func (s *CredentialStore) Set(ctx context.Context, cred domainauth.Credential) error {
	if cred.IsZero() {
		return errors.New("credential cannot be empty")
	}
	data, err := json.Marshal(storedCredential{Token: cred.Token(), SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
