package config

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the portal (e.g., "https://portal.example.edu").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for the client-context cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure marks the client-context cookie Secure. Defaults on for https base URLs.
	CookieSecure *bool `env:"APP_COOKIE_SECURE"`

	// CSRFKey signs per-client CSRF tokens. Empty generates a random key at startup,
	// which invalidates open forms on restart.
	CSRFKey string `env:"APP_CSRF_KEY"`
}

// Sanitize normalizes the cookie domain and derives CookieSecure from BaseURL when unset.
func (h *HTTPConfig) Sanitize() {
	h.CookieDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h.CookieDomain)), ".")
	if h.CookieSecure == nil {
		secure := strings.HasPrefix(strings.ToLower(h.BaseURL), "https://")
		h.CookieSecure = &secure
	}
}

// SecureCookies reports whether cookies should carry the Secure attribute.
func (h *HTTPConfig) SecureCookies() bool {
	return h.CookieSecure != nil && *h.CookieSecure
}

// Validate rejects malformed base URLs and cookie domains that are public suffixes.
func (h *HTTPConfig) Validate() error {
	if _, err := url.ParseRequestURI(h.BaseURL); err != nil {
		return fmt.Errorf("APP_BASE_URL: %w", err)
	}
	if h.CookieDomain == "" || h.CookieDomain == "localhost" {
		return nil
	}
	suffix, _ := publicsuffix.PublicSuffix(h.CookieDomain)
	if suffix == h.CookieDomain {
		return fmt.Errorf("APP_COOKIE_DOMAIN: %q is a public suffix", h.CookieDomain)
	}
	return nil
}
