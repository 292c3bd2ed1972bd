package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/schoolhub/portal/internal/ports"
)

// StoreFactory returns the credential store of one client context.
type StoreFactory func(clientID string) ports.CredentialStore

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Stores   StoreFactory
	Resolver ports.IdentityResolver
	Gateway  ports.AuthGateway
	Logger   *slog.Logger

	// IdleTTL evicts client contexts not acquired for this long. Zero disables eviction.
	IdleTTL time.Duration
	// BaseContext is handed to each manager's bootstrap. Defaults to context.Background().
	BaseContext context.Context
	// Now is overridable for tests.
	Now func() time.Time
}

type registryEntry struct {
	manager  *SessionManager
	lastSeen time.Time
}

// SessionRegistry owns one SessionManager per client context of a multi-client host.
type SessionRegistry struct {
	opts     SessionRegistryOptions
	logger   *slog.Logger
	validate *validator.Validate

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry(opts SessionRegistryOptions) *SessionRegistry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionRegistry{
		opts:     opts,
		logger:   opts.Logger,
		validate: NewInputValidator(),
		entries:  make(map[string]*registryEntry),
	}
}

// Acquire returns the manager of clientID, creating and bootstrapping it on first sight.
// Concurrent first requests of the same client share one manager and one bootstrap.
func (r *SessionRegistry) Acquire(clientID string) *SessionManager {
	if m := r.touch(clientID); m != nil {
		return m
	}
	v, _, _ := r.group.Do(clientID, func() (any, error) {
		if m := r.touch(clientID); m != nil {
			return m, nil
		}
		m := NewSessionManager(SessionManagerOptions{
			Store:    r.opts.Stores(clientID),
			Resolver: r.opts.Resolver,
			Gateway:  r.opts.Gateway,
			Logger:   r.logger,
			Validate: r.validate,
		})
		r.mu.Lock()
		r.entries[clientID] = &registryEntry{manager: m, lastSeen: r.opts.Now()}
		r.mu.Unlock()

		m.Start(r.opts.BaseContext)
		r.logger.Debug("client context created", "client", shortID(clientID))
		return m, nil
	})
	return v.(*SessionManager)
}

// Lookup returns the manager of clientID without creating one.
func (r *SessionRegistry) Lookup(clientID string) (*SessionManager, bool) {
	m := r.touch(clientID)
	return m, m != nil
}

// Len reports the number of live client contexts.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Discard closes and forgets the manager of clientID, if any. The stored credential is
// untouched; callers that want it gone log out first.
func (r *SessionRegistry) Discard(clientID string) {
	r.mu.Lock()
	e, ok := r.entries[clientID]
	delete(r.entries, clientID)
	r.mu.Unlock()
	if ok {
		e.manager.Close()
	}
}

func (r *SessionRegistry) touch(clientID string) *SessionManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[clientID]
	if !ok {
		return nil
	}
	e.lastSeen = r.opts.Now()
	return e.manager
}

// Sweep closes and forgets client contexts idle for longer than IdleTTL.
// Their stored credentials are left alone so a returning browser bootstraps again.
func (r *SessionRegistry) Sweep() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.opts.Now().Add(-r.opts.IdleTTL)

	var evicted []*SessionManager
	r.mu.Lock()
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e.manager)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, m := range evicted {
		m.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("evicted idle client contexts", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done, then closes every manager.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close tears down every manager.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.manager.Close()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
