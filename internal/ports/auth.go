package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/schoolhub/portal/internal/domain/auth"
)

// CredentialStore persists the single bearer credential of one client context.
// Get returns domainauth.ErrNoCredential when nothing is stored.
// Set atomically replaces any prior value.
type CredentialStore interface {
	Get(ctx context.Context) (domainauth.Credential, error)
	Set(ctx context.Context, cred domainauth.Credential) error
	Clear(ctx context.Context) error
}

// IdentityResolver asks the gateway who the holder of a credential is.
// Every failure is a *domainauth.AuthError.
type IdentityResolver interface {
	Resolve(ctx context.Context, cred domainauth.Credential) (domainauth.Identity, error)
}

// LoginInput carries the login form.
type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput carries the self-registration form. The role is always Student.
type RegisterInput struct {
	Email     string `json:"email"      validate:"required,email"`
	Username  string `json:"username"   validate:"required,min=3,max=64"`
	Password  string `json:"password"   validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"  validate:"required"`
	Program   string `json:"program,omitempty"    validate:"omitempty,max=64"`
	YearLevel int    `json:"year_level,omitempty" validate:"omitempty,min=1,max=6"`
}

// AuthResult is a credential exchanged together with the identity it proves.
type AuthResult struct {
	Credential domainauth.Credential
	Identity   domainauth.Identity
}

// AuthGateway exchanges user secrets for a credential and identity in one round trip.
// Every failure is a *domainauth.AuthError.
type AuthGateway interface {
	Login(ctx context.Context, in LoginInput) (AuthResult, error)
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
}

// ResourceFetcher performs bearer-authenticated GETs against non-auth endpoints.
// A 401 is reported as a *domainauth.AuthError of kind KindInvalidCredential; a 403 means the
// credential is fine but lacks the role, and is reported as KindValidationFailure.
type ResourceFetcher interface {
	Fetch(ctx context.Context, cred domainauth.Credential, path string, dst any) error
}
