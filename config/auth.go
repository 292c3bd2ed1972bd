package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CredentialBackend selects the credential store implementation.
type CredentialBackend string

const (
	// CredentialBackendRedis keeps one credential per browser client context in Redis.
	CredentialBackendRedis CredentialBackend = "redis"
	// CredentialBackendFile keeps a single credential in a local JSON file.
	CredentialBackendFile CredentialBackend = "file"
)

// UnmarshalText implements encoding.TextUnmarshaler for CredentialBackend.
func (b *CredentialBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "file":
		*b = CredentialBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid CredentialBackend: %q (valid options: redis, file)", v)
	}
}

// GatewayConfig points at the authentication gateway.
type GatewayConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8001/api"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// Sanitize clamps the request timeout.
func (g *GatewayConfig) Sanitize() {
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.Timeout <= 0 {
		g.Timeout = 10 * time.Second
	}
	if g.Timeout > 2*time.Minute {
		g.Timeout = 2 * time.Minute
	}
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (g *GatewayConfig) Validate() error {
	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return fmt.Errorf("GATEWAY_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("GATEWAY_BASE_URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("GATEWAY_BASE_URL: missing host")
	}
	return nil
}

// CredentialStoreConfig controls credential persistence.
type CredentialStoreConfig struct {
	Backend CredentialBackend `env:"STORE"      envDefault:"redis"`
	// File is the file backend's single-client store (portalctl). Empty means
	// $HOME/.schoolhub/credentials.json.
	File string `env:"FILE"`
	// Dir holds one file per client context when the portal server uses the file backend.
	// Empty means $HOME/.schoolhub/clients.
	Dir string `env:"DIR"`
	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"portal:credential:"`
	// TTL expires Redis credentials; zero keeps them until logout.
	TTL time.Duration `env:"TTL" envDefault:"24h"`
}

// Sanitize expands a leading ~ and rejects negative TTLs.
func (c *CredentialStoreConfig) Sanitize() {
	if c.TTL < 0 {
		c.TTL = 0
	}
	c.File = expandHome(c.File)
	c.Dir = expandHome(c.Dir)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Validate checks the backend choice.
func (c *CredentialStoreConfig) Validate() error {
	switch c.Backend {
	case CredentialBackendRedis:
		if strings.TrimSpace(c.KeyPrefix) == "" {
			return errors.New("CREDENTIAL_KEY_PREFIX is required for the redis backend")
		}
		return nil
	case CredentialBackendFile:
		return nil
	default:
		return fmt.Errorf("CREDENTIAL_STORE: unsupported backend %q", c.Backend)
	}
}
