package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/ports"
)

var (
	// ErrClosed is returned by mutators of a manager that has been torn down.
	ErrClosed = errors.New("session manager closed")
	// ErrSuperseded is returned when a newer session call was issued before this one completed;
	// the result was discarded.
	ErrSuperseded = errors.New("superseded by a newer session request")
	// ErrNotAuthenticated is returned by Authorized when there is no authenticated identity.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Store    ports.CredentialStore
	Resolver ports.IdentityResolver
	Gateway  ports.AuthGateway
	Logger   *slog.Logger
	// Validate is optional; a default validator is created when nil.
	Validate *validator.Validate
}

// SessionManager owns the session state of one client context.
//
// It is the only writer of both the state and the credential store. Every mutating call
// takes a ticket when issued; a completion commits only while its ticket is the latest one,
// so a slow response can never overwrite the outcome of a call issued after it. Bootstrap is
// the exception while nothing else has committed yet: its answer still lands if a later call
// failed and left the state Unresolved.
//
// Subscribers run synchronously, in commit order, and must not call Login, Register, Logout
// or Close from inside the callback.
type SessionManager struct {
	store    ports.CredentialStore
	resolver ports.IdentityResolver
	gateway  ports.AuthGateway
	logger   *slog.Logger
	validate *validator.Validate

	emitMu sync.Mutex // held across commit + notify

	mu     sync.Mutex
	state  domainauth.State
	issued uint64

	// withdrawn holds tickets of failed calls that could not be handed back yet.
	withdrawn map[uint64]struct{}

	subs    map[uint64]func(domainauth.State)
	nextSub uint64
	closed  bool

	bootOnce sync.Once
	ready    chan struct{}
}

// NewSessionManager constructs a manager in the Unresolved state.
func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := opts.Validate
	if v == nil {
		v = NewInputValidator()
	}
	return &SessionManager{
		store:    opts.Store,
		resolver: opts.Resolver,
		gateway:  opts.Gateway,
		logger:   logger,
		validate: v,
		state:    domainauth.Unresolved(),
		subs:     make(map[uint64]func(domainauth.State)),
		ready:    make(chan struct{}),
	}
}

// State returns the current session state.
func (m *SessionManager) State() domainauth.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn to receive every committed transition.
// The returned function removes the subscription.
func (m *SessionManager) Subscribe(fn func(domainauth.State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Ready is closed once bootstrap has completed.
func (m *SessionManager) Ready() <-chan struct{} { return m.ready }

// Start begins Bootstrap in the background and returns immediately. Bootstrap's ticket
// is taken before Start returns, so any call made afterwards supersedes it.
func (m *SessionManager) Start(ctx context.Context) {
	m.bootOnce.Do(func() {
		t := m.ticket()
		go func() {
			defer close(m.ready)
			m.bootstrap(ctx, t)
		}()
	})
}

// Bootstrap resolves the stored credential, if any, into the initial state.
// Only the first call (or Start) does anything; later calls wait for it to finish.
func (m *SessionManager) Bootstrap(ctx context.Context) {
	m.bootOnce.Do(func() {
		defer close(m.ready)
		m.bootstrap(ctx, m.ticket())
	})
	select {
	case <-m.ready:
	case <-ctx.Done():
	}
}

func (m *SessionManager) bootstrap(ctx context.Context, t uint64) {
	cred, err := m.store.Get(ctx)
	if err != nil || cred.IsZero() {
		if err != nil && !errors.Is(err, domainauth.ErrNoCredential) {
			m.logger.WarnContext(ctx, "credential store read failed; starting anonymous", "error", err)
		}
		m.commitBootstrap(ctx, t, domainauth.Anonymous(), false)
		return
	}

	id, err := m.resolver.Resolve(ctx, cred)
	if err != nil {
		m.logger.InfoContext(ctx, "stored credential rejected", "kind", errorKind(err))
		m.commitBootstrap(ctx, t, domainauth.Anonymous(), true)
		return
	}
	m.commitBootstrap(ctx, t, domainauth.Authenticated(id, cred), false)
}

// Login exchanges email and password for a credential and identity.
// On failure the state is unchanged and the gateway's error is returned.
func (m *SessionManager) Login(ctx context.Context, in ports.LoginInput) (domainauth.State, error) {
	if m.isClosed() {
		return domainauth.State{}, ErrClosed
	}
	if err := m.validateInput(in); err != nil {
		return m.State(), err
	}
	t := m.ticket()
	res, err := m.gateway.Login(ctx, in)
	if err != nil {
		m.withdraw(t)
		return m.State(), fmt.Errorf("login: %w", err)
	}
	return m.establish(ctx, t, res)
}

// Register creates a Student account and signs it in, like Login.
func (m *SessionManager) Register(ctx context.Context, in ports.RegisterInput) (domainauth.State, error) {
	if m.isClosed() {
		return domainauth.State{}, ErrClosed
	}
	if err := m.validateInput(in); err != nil {
		return m.State(), err
	}
	t := m.ticket()
	res, err := m.gateway.Register(ctx, in)
	if err != nil {
		m.withdraw(t)
		return m.State(), fmt.Errorf("register: %w", err)
	}
	return m.establish(ctx, t, res)
}

func (m *SessionManager) establish(ctx context.Context, t uint64, res ports.AuthResult) (domainauth.State, error) {
	if res.Credential.IsZero() || !res.Identity.Role.Valid() {
		m.withdraw(t)
		return m.State(), &domainauth.AuthError{
			Kind: domainauth.KindMalformedResponse,
			Err:  errors.New("gateway returned an incomplete credential exchange"),
		}
	}
	next := domainauth.Authenticated(res.Identity, res.Credential)
	committed, closed := m.commit(ctx, t, next, func(ctx context.Context) func(context.Context) {
		prev, prevErr := m.store.Get(ctx)
		if err := m.store.Set(ctx, res.Credential); err != nil {
			m.logger.WarnContext(ctx, "credential store write failed; session kept in memory", "error", err)
			return nil
		}
		return func(ctx context.Context) {
			var err error
			if prevErr == nil && !prev.IsZero() {
				err = m.store.Set(ctx, prev)
			} else {
				err = m.store.Clear(ctx)
			}
			if err != nil {
				m.logger.WarnContext(ctx, "credential store rollback failed", "error", err)
			}
		}
	})
	switch {
	case closed:
		return domainauth.State{}, ErrClosed
	case !committed:
		return m.State(), ErrSuperseded
	}
	return next, nil
}

// Logout clears the credential store and moves to Anonymous. It always succeeds
// and supersedes any call still in flight.
func (m *SessionManager) Logout(ctx context.Context) {
	if m.isClosed() {
		return
	}
	t := m.ticket()
	m.commit(ctx, t, domainauth.Anonymous(), func(ctx context.Context) func(context.Context) {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.WarnContext(ctx, "credential store clear failed", "error", err)
		}
		return nil
	})
}

// HandleAPIError logs out when err reports that cred was rejected and cred is still the
// active credential. It reports whether a logout happened.
func (m *SessionManager) HandleAPIError(ctx context.Context, cred domainauth.Credential, err error) bool {
	if !domainauth.IsKind(err, domainauth.KindInvalidCredential) {
		return false
	}
	current, ok := m.State().Credential()
	if !ok || current != cred {
		return false
	}
	m.logger.InfoContext(ctx, "credential rejected by API; signing out")
	m.Logout(ctx)
	return true
}

// Authorized runs fn with the active credential. A rejection of that credential by the API
// signs the session out before the error is returned.
func (m *SessionManager) Authorized(ctx context.Context, fn func(ctx context.Context, cred domainauth.Credential) error) error {
	cred, ok := m.State().Credential()
	if !ok {
		return ErrNotAuthenticated
	}
	err := fn(ctx, cred)
	if err != nil {
		m.HandleAPIError(ctx, cred, err)
	}
	return err
}

// Close tears the manager down. Completions arriving afterwards are discarded.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[uint64]func(domainauth.State))
}

func (m *SessionManager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *SessionManager) ticket() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return m.issued
}

// withdraw hands back the ticket of a call that failed, so it does not supersede calls issued
// before it. Tickets are handed back from the top; a failed call with newer tickets above it
// waits in withdrawn until those are handed back too.
func (m *SessionManager) withdraw(t uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.withdrawn == nil {
		m.withdrawn = make(map[uint64]struct{})
	}
	m.withdrawn[t] = struct{}{}
	for {
		if _, ok := m.withdrawn[m.issued]; !ok {
			return
		}
		delete(m.withdrawn, m.issued)
		m.issued--
	}
}

// commit installs next if t is still the latest ticket. effect runs first, inside the
// same critical section, so the store never disagrees with the committed state. The undo
// returned by effect runs when the manager is closed while effect was in progress.
func (m *SessionManager) commit(
	ctx context.Context,
	t uint64,
	next domainauth.State,
	effect func(context.Context) (undo func(context.Context)),
) (committed, closed bool) {
	return m.commitIf(ctx, next, effect, func(current domainauth.State, latest uint64) bool {
		return t == latest
	})
}

func (m *SessionManager) commitBootstrap(ctx context.Context, t uint64, next domainauth.State, clearStore bool) {
	var effect func(context.Context) func(context.Context)
	if clearStore {
		effect = func(ctx context.Context) func(context.Context) {
			if err := m.store.Clear(ctx); err != nil {
				m.logger.WarnContext(ctx, "credential store clear failed", "error", err)
			}
			return nil
		}
	}
	m.commitIf(ctx, next, effect, func(current domainauth.State, latest uint64) bool {
		return t == latest || current.IsUnresolved()
	})
}

func (m *SessionManager) commitIf(
	ctx context.Context,
	next domainauth.State,
	effect func(context.Context) (undo func(context.Context)),
	admit func(current domainauth.State, latest uint64) bool,
) (committed, closed bool) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, true
	}
	if !admit(m.state, m.issued) {
		m.mu.Unlock()
		return false, false
	}
	m.mu.Unlock()

	var undo func(context.Context)
	if effect != nil {
		undo = effect(ctx)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if undo != nil {
			undo(ctx)
		}
		return false, true
	}
	prev := m.state
	m.state = next
	subs := make([]func(domainauth.State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if prev.Phase() == next.Phase() && !next.IsAuthenticated() {
		return true, false
	}
	m.logger.DebugContext(ctx, "session transition", "from", prev.String(), "to", next.String())
	for _, fn := range subs {
		fn(next)
	}
	return true, false
}

func errorKind(err error) string {
	var ae *domainauth.AuthError
	if errors.As(err, &ae) {
		return ae.Kind.String()
	}
	return "unknown"
}
