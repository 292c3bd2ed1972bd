package httpx

import (
	"context"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/service"
)

// Unexported context key types to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same keys.
type (
	sessionKey  struct{}
	clientIDKey struct{}
)

// SetSessionInContext returns a child context that carries the client's session manager.
// If m is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, m *service.SessionManager) context.Context {
	if m == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, m)
}

// GetSessionFromContext returns the session manager from context and a boolean indicating presence.
func GetSessionFromContext(ctx context.Context) (*service.SessionManager, bool) {
	if m, ok := ctx.Value(sessionKey{}).(*service.SessionManager); ok && m != nil {
		return m, true
	}
	return nil, false
}

// SetClientIDInContext records the client context id of the request.
func SetClientIDInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// GetClientIDFromContext returns the client context id, or "" outside ClientContexts.Middleware.
func GetClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// SessionState returns the current state of the request's session, or Unresolved when the
// request carries no session manager.
func SessionState(ctx context.Context) domainauth.State {
	if m, ok := GetSessionFromContext(ctx); ok {
		return m.State()
	}
	return domainauth.Unresolved()
}
