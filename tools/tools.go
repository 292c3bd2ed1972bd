//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` or run through `go run` and are not
// tracked in go.mod since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// Air - Live reload for the portal server (pair with DEV=true so templates load from disk)
//   Install: go install github.com/air-verse/air@v1.63.0
//   Run:     DEV=true air --build.cmd "go build -o ./tmp/portal ./cmd/portal" --build.bin ./tmp/portal
//   Docs: https://github.com/air-verse/air
//
// MockGen - Regenerates internal/mocks/ports_mock.go after a ports interface changes
//   Run:     go generate ./internal/mocks
//   Version: v0.6.0 (pinned in the go:generate directive)
//   Docs: https://github.com/uber-go/mock
