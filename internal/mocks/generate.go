// Package mocks provides mock implementations for testing the portal session core.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the session ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	resolver := mocks.NewMockIdentityResolver(ctrl)
//	resolver.EXPECT().Resolve(gomock.Any(), domainauth.Credential("t1")).Return(identity, nil)
package mocks

// Generate mocks for the session ports:
// CredentialStore (Get, Set, Clear), IdentityResolver (Resolve),
// AuthGateway (Login, Register), ResourceFetcher (Fetch).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/schoolhub/portal/internal/ports CredentialStore,IdentityResolver,AuthGateway,ResourceFetcher
