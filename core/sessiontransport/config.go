package sessiontransport

import (
	"net/http"
	"strings"
)

// Config describes the session cookie.
type Config struct {
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"wallsess"`
	Domain     string        `env:"SESSION_COOKIE_DOMAIN"`
	Path       string        `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	Secure     bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
	SameSite   http.SameSite `env:"SESSION_COOKIE_SAME_SITE" envDefault:"2"` // Lax
	// Secrets is a comma-separated list of HMAC keys. When set, the cookie
	// value is signed with the first key and verified against all of them.
	Secrets string `env:"SESSION_COOKIE_SECRETS"`
}

// DefaultConfig returns the production cookie settings.
func DefaultConfig() Config {
	return Config{
		CookieName: "wallsess",
		Path:       "/",
		Secure:     true,
		SameSite:   http.SameSiteLaxMode,
	}
}

func (c Config) secrets() []string {
	if c.Secrets == "" {
		return nil
	}
	var out []string
	for s := range strings.SplitSeq(c.Secrets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
