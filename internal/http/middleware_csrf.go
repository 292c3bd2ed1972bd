package httpx

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DefaultCSRFHeaderName is the default name for the CSRF header (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFFormField is the default name of the CSRF form field.
	DefaultCSRFFormField = "csrf_token"
	// CSRFKeyLength is the size of generated signing keys in bytes.
	CSRFKeyLength = 32
)

var errCSRFFailed = errors.New("CSRF token validation failed")

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	// Key signs tokens. Required; see NewCSRFKey.
	Key []byte
	// HeaderName is the name of the CSRF header to check (default: "X-Csrf-Token")
	HeaderName string
	// FormFieldName is the name of the form field to check (default: "csrf_token")
	FormFieldName string
}

// NewCSRFKey generates a random signing key.
func NewCSRFKey() ([]byte, error) {
	b := make([]byte, CSRFKeyLength)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("csrf key generation failed: %w", err)
	}
	return b, nil
}

// TokenFor returns the CSRF token of a client context. The token is an HMAC of the client id,
// so it changes whenever the browser is moved to a new client context.
func (cfg CSRFConfig) TokenFor(clientID string) string {
	if clientID == "" || len(cfg.Key) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, cfg.Key)
	mac.Write([]byte(clientID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (cfg *CSRFConfig) withDefaults() {
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultCSRFFormField
	}
}

// CSRFProtection returns a middleware that rejects state-changing requests lacking the token of
// the request's client context. It must run inside ClientContexts.Middleware.
// The token can be submitted via:
// - X-Csrf-Token header (for htmx, fetch and JSON clients)
// - csrf_token form field (for standard form submissions)
//
// GET, HEAD, OPTIONS, and TRACE requests are exempt from CSRF validation.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cfg.TokenFor(GetClientIDFromContext(r.Context()))
			r = r.WithContext(setCSRFTokenInContext(r.Context(), token))

			if requiresCSRFValidation(r.Method) && !validateCSRFToken(r, token, cfg) {
				if wantsJSON(r) {
					WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_failed", Err: errCSRFFailed})
					return
				}
				http.Error(w, errCSRFFailed.Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requiresCSRFValidation returns true if the HTTP method requires CSRF validation.
// Safe methods (GET, HEAD, OPTIONS, TRACE) are exempt.
func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// validateCSRFToken checks the header first, then the form field of form-encoded bodies.
// Uses constant-time comparison to prevent timing side-channel attacks.
func validateCSRFToken(r *http.Request, expected string, cfg CSRFConfig) bool {
	if expected == "" {
		return false
	}

	if headerToken := r.Header.Get(cfg.HeaderName); headerToken != "" {
		return subtle.ConstantTimeCompare([]byte(headerToken), []byte(expected)) == 1
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return false
		}
		if formToken := r.PostFormValue(cfg.FormFieldName); formToken != "" {
			return subtle.ConstantTimeCompare([]byte(formToken), []byte(expected)) == 1
		}
	}

	return false
}

// csrfTokenKey is an unexported context key type for CSRF token storage.
type csrfTokenKey struct{}

func setCSRFTokenInContext(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey{}, token)
}

// GetCSRFToken retrieves the CSRF token from the request context.
// Templates embed it in forms; JSON clients read it from /auth/status.
func GetCSRFToken(r *http.Request) string {
	if token, ok := r.Context().Value(csrfTokenKey{}).(string); ok {
		return token
	}
	return ""
}
