package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication gateway and credential storage
//   - redis.go: Redis connection
//   - http.go: Portal HTTP server
//   - session.go: Session registry tuning
type AppConfig struct {
	// IsDev controls development mode behavior (template reloading, verbose logs).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Gateway is the authentication gateway the portal talks to.
	Gateway GatewayConfig `envPrefix:"GATEWAY_"`

	// Credentials selects where credentials are persisted.
	Credentials CredentialStoreConfig `envPrefix:"CREDENTIAL_"`

	Redis RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Session SessionConfig `envPrefix:"SESSION_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Gateway.Sanitize()
	c.Credentials.Sanitize()
	c.HTTP.Sanitize()
	c.Session.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// Validate reports configuration that cannot work at all.
func (c *AppConfig) Validate() error {
	return errors.Join(
		c.Gateway.Validate(),
		c.Credentials.Validate(),
		c.HTTP.Validate(),
	)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
