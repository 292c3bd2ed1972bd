package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies authentication failures.
type ErrorKind uint8

const (
	// KindNetworkFailure: no response from the gateway.
	KindNetworkFailure ErrorKind = iota + 1
	// KindInvalidCredential: 401/403, the credential or password was rejected.
	KindInvalidCredential
	// KindValidationFailure: 4xx with field-level detail, or rejected locally before sending.
	KindValidationFailure
	// KindMalformedResponse: a success status with a body that could not be understood.
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindValidationFailure:
		return "validation_failure"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// GenericFailureMessage is shown when the gateway supplied no usable detail.
const GenericFailureMessage = "Authentication failed. Please try again."

// ErrNoCredential is returned by credential stores holding nothing.
var ErrNoCredential = errors.New("no credential stored")

// AuthError is the single error type surfaced by gateway operations.
type AuthError struct {
	Kind   ErrorKind
	Status int    // HTTP status when a response was received, 0 otherwise
	Detail string // gateway-provided detail, safe to show to the user
	Err    error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsKind reports whether err is an AuthError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}

// UserMessage returns the gateway's detail verbatim, or the generic fallback.
func UserMessage(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) && strings.TrimSpace(ae.Detail) != "" {
		return ae.Detail
	}
	return GenericFailureMessage
}
