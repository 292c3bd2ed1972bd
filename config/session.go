package config

import "time"

// SessionConfig tunes the per-browser session registry of the portal.
type SessionConfig struct {
	// BootstrapWait is how long a request waits for an in-flight bootstrap before
	// rendering the pending placeholder.
	BootstrapWait time.Duration `env:"BOOTSTRAP_WAIT" envDefault:"1500ms"`

	// IdleTTL evicts client contexts that have not made a request for this long.
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"30m"`

	// SweepInterval is how often idle client contexts are evicted.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Sanitize clamps the session durations to workable ranges.
func (s *SessionConfig) Sanitize() {
	if s.BootstrapWait < 0 {
		s.BootstrapWait = 0
	}
	if s.BootstrapWait > 30*time.Second {
		s.BootstrapWait = 30 * time.Second
	}
	if s.IdleTTL <= 0 {
		s.IdleTTL = 30 * time.Minute
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = time.Minute
	}
	if s.SweepInterval > s.IdleTTL {
		s.SweepInterval = s.IdleTTL
	}
}
