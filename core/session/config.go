package session

import (
	"time"
)

// Config holds session manager configuration.
type Config struct {
	// TTL is the fixed lifetime window applied on every write.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// EnforceDrift destroys sessions whose IP or user agent changed.
	// Off by default: drift is logged, not enforced.
	EnforceDrift bool `env:"SESSION_ENFORCE_DRIFT" envDefault:"false"`

	// NotifyTimeout bounds each audit notification.
	NotifyTimeout time.Duration `env:"SESSION_NOTIFY_TIMEOUT" envDefault:"2s"`

	// ListLimit caps admin session listings (0 = unlimited).
	ListLimit int `env:"SESSION_LIST_LIMIT" envDefault:"200"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:           24 * time.Hour,
		EnforceDrift:  false,
		NotifyTimeout: 2 * time.Second,
		ListLimit:     200,
	}
}

// Option is a functional option for configuring the session manager.
type Option func(*Config)

// WithTTL sets the session time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Config) {
		if ttl > 0 {
			c.TTL = ttl
		}
	}
}

// WithEnforceDrift toggles drift enforcement.
func WithEnforceDrift(enforce bool) Option {
	return func(c *Config) {
		c.EnforceDrift = enforce
	}
}

// WithNotifyTimeout sets the per-notification timeout.
func WithNotifyTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.NotifyTimeout = d
	}
}

// WithListLimit caps admin listings.
func WithListLimit(n int) Option {
	return func(c *Config) {
		c.ListLimit = n
	}
}
