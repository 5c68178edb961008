package sessiontransport

import "errors"

var (
	// ErrNoToken is returned when the request carries no session cookie.
	ErrNoToken = errors.New("sessiontransport: no token")

	// ErrInvalidToken is returned when the cookie is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("sessiontransport: invalid token")

	// ErrSecretTooShort is returned by NewCookie for signing keys under 32 bytes.
	ErrSecretTooShort = errors.New("sessiontransport: secret must be at least 32 characters long")
)
