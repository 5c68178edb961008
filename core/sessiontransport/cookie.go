package sessiontransport

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/wallpaperhub/sessions/core/session"
)

const minSecretLength = 32

// Cookie carries the session identifier in an HTTP cookie.
type Cookie struct {
	cfg     Config
	secrets []string
}

// NewCookie creates the cookie transport. Empty name and path fall back to
// DefaultConfig.
func NewCookie(cfg Config) (*Cookie, error) {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}

	secrets := cfg.secrets()
	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars", ErrSecretTooShort, i, len(s))
		}
	}
	return &Cookie{cfg: cfg, secrets: secrets}, nil
}

// Name returns the cookie name.
func (c *Cookie) Name() string { return c.cfg.CookieName }

// ReadID returns the session identifier sent by the client. Values that are
// not shaped like session.NewID output are rejected with ErrInvalidToken.
func (c *Cookie) ReadID(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.cfg.CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrNoToken
		}
		return "", errors.Join(ErrInvalidToken, err)
	}
	if ck.Value == "" {
		return "", ErrNoToken
	}
	id := ck.Value
	if len(c.secrets) > 0 {
		if id, err = c.verify(ck.Value); err != nil {
			return "", err
		}
	}
	if !session.ValidID(id) {
		return "", ErrInvalidToken
	}
	return id, nil
}

// Set sends the identifier with a max age of ttl.
func (c *Cookie) Set(w http.ResponseWriter, id string, ttl time.Duration) {
	value := id
	if len(c.secrets) > 0 {
		value = c.sign(id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    value,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	})
}

// Expire tells the client to drop the cookie.
func (c *Cookie) Expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    "",
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	})
}

func (c *Cookie) sign(value string) string {
	return value + "." + mac(c.secrets[0], value)
}

// verify accepts a signature made with any configured secret, so keys can
// be rotated without logging everyone out.
func (c *Cookie) verify(signed string) (string, error) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 {
		return "", ErrInvalidToken
	}
	value, sig := signed[:i], signed[i+1:]

	ok := slices.ContainsFunc(c.secrets, func(secret string) bool {
		return subtle.ConstantTimeCompare([]byte(sig), []byte(mac(secret, value))) == 1
	})
	if !ok {
		return "", ErrInvalidToken
	}
	return value, nil
}

func mac(secret, value string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
