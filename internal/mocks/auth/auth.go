package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialStore  = (*MemoryCredentialStore)(nil)
	_ ports.AuthGateway      = (*StubGateway)(nil)
	_ ports.IdentityResolver = (*StubGateway)(nil)
	_ ports.ResourceFetcher  = (*StubGateway)(nil)
)

// MemoryCredentialStore is an in-memory credential store for unit tests.
// GetErr/SetErr/ClearErr inject failures.
type MemoryCredentialStore struct {
	mu   sync.Mutex
	cred domainauth.Credential

	GetErr   error
	SetErr   error
	ClearErr error
}

// NewMemoryCredentialStore creates a store, optionally preloaded with cred.
func NewMemoryCredentialStore(cred domainauth.Credential) *MemoryCredentialStore {
	return &MemoryCredentialStore{cred: cred}
}

func (m *MemoryCredentialStore) Get(_ context.Context) (domainauth.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	if m.cred.IsZero() {
		return "", domainauth.ErrNoCredential
	}
	return m.cred, nil
}

func (m *MemoryCredentialStore) Set(_ context.Context, cred domainauth.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.cred = cred
	return nil
}

func (m *MemoryCredentialStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.cred = ""
	return nil
}

// Peek returns the stored credential bypassing injected failures.
func (m *MemoryCredentialStore) Peek() domainauth.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// Account is a user known to StubGateway.
type Account struct {
	Password string
	Identity domainauth.Identity
}

// StubGateway simulates the authentication gateway with deterministic tokens.
// Func fields override the default behavior.
type StubGateway struct {
	LoginFunc    func(ctx context.Context, in ports.LoginInput) (ports.AuthResult, error)
	RegisterFunc func(ctx context.Context, in ports.RegisterInput) (ports.AuthResult, error)
	ResolveFunc  func(ctx context.Context, cred domainauth.Credential) (domainauth.Identity, error)
	FetchFunc    func(ctx context.Context, cred domainauth.Credential, path string, dst any) error

	mu        sync.Mutex
	accounts  map[string]Account               // by email
	tokens    map[domainauth.Credential]string // token -> email
	callCount int
	resolves  int
}

// NewStubGateway creates a gateway seeded with the demo admin account.
func NewStubGateway() *StubGateway {
	g := &StubGateway{
		accounts: make(map[string]Account),
		tokens:   make(map[domainauth.Credential]string),
	}
	g.AddAccount("admin@school.edu", "admin123", domainauth.Identity{
		ID:       "admin-1",
		Username: "admin",
		Email:    "admin@school.edu",
		Role:     domainauth.RoleAdmin,
	})
	return g
}

// AddAccount registers an account that Login accepts.
func (g *StubGateway) AddAccount(email, password string, id domainauth.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[email] = Account{Password: password, Identity: id}
}

// Revoke makes a previously issued token fail resolution.
func (g *StubGateway) Revoke(cred domainauth.Credential) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tokens, cred)
}

// Resolves returns how many times Resolve was called.
func (g *StubGateway) Resolves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolves
}

func (g *StubGateway) issue(email string) domainauth.Credential {
	g.callCount++
	tok := domainauth.Credential(fmt.Sprintf("t%d", g.callCount))
	g.tokens[tok] = email
	return tok
}

func (g *StubGateway) Login(ctx context.Context, in ports.LoginInput) (ports.AuthResult, error) {
	if g.LoginFunc != nil {
		return g.LoginFunc(ctx, in)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	acct, ok := g.accounts[in.Email]
	if !ok || acct.Password != in.Password {
		return ports.AuthResult{}, &domainauth.AuthError{
			Kind:   domainauth.KindInvalidCredential,
			Status: 401,
			Detail: "Invalid credentials",
		}
	}
	return ports.AuthResult{Credential: g.issue(in.Email), Identity: acct.Identity}, nil
}

func (g *StubGateway) Register(ctx context.Context, in ports.RegisterInput) (ports.AuthResult, error) {
	if g.RegisterFunc != nil {
		return g.RegisterFunc(ctx, in)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.accounts[in.Email]; exists {
		return ports.AuthResult{}, &domainauth.AuthError{
			Kind:   domainauth.KindValidationFailure,
			Status: 400,
			Detail: "Email already registered",
		}
	}
	id := domainauth.Identity{
		ID:       fmt.Sprintf("student-%d", len(g.accounts)+1),
		Username: in.Username,
		Email:    in.Email,
		Role:     domainauth.RoleStudent,
	}
	g.accounts[in.Email] = Account{Password: in.Password, Identity: id}
	return ports.AuthResult{Credential: g.issue(in.Email), Identity: id}, nil
}

func (g *StubGateway) Resolve(ctx context.Context, cred domainauth.Credential) (domainauth.Identity, error) {
	g.mu.Lock()
	g.resolves++
	g.mu.Unlock()
	if g.ResolveFunc != nil {
		return g.ResolveFunc(ctx, cred)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	email, ok := g.tokens[cred]
	if !ok {
		return domainauth.Identity{}, &domainauth.AuthError{
			Kind:   domainauth.KindInvalidCredential,
			Status: 401,
			Detail: "Invalid token",
		}
	}
	return g.accounts[email].Identity, nil
}

func (g *StubGateway) Fetch(ctx context.Context, cred domainauth.Credential, path string, dst any) error {
	if g.FetchFunc != nil {
		return g.FetchFunc(ctx, cred, path, dst)
	}
	g.mu.Lock()
	_, ok := g.tokens[cred]
	g.mu.Unlock()
	if !ok {
		return &domainauth.AuthError{Kind: domainauth.KindInvalidCredential, Status: 401, Detail: "Invalid token"}
	}
	if p, isMap := dst.(*any); isMap {
		*p = map[string]any{"path": path}
	}
	return nil
}
