package session

import "errors"

var (
	// ErrNotFound is returned when a session cannot be found in the store or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps any backing store failure.
	// The manager recovers from it by degrading to an ephemeral session.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrRotationVerification is returned by BindUser when the rotated session
	// still lacks the bound fields after one repair attempt.
	ErrRotationVerification = errors.New("session rotation verification failed")
	// ErrDrift is returned by ValidateDrift when enforcement is enabled and the
	// request IP or user agent no longer matches the stored one.
	ErrDrift = errors.New("session client drift detected")
	// ErrNotify wraps audit notification failures. It is logged, never propagated.
	ErrNotify = errors.New("session audit notification failed")
	// ErrNilState is returned when a lifecycle method is called without request state.
	ErrNilState = errors.New("session state is nil")
	// ErrSessionDestroyed is returned when binding a user to a destroyed session.
	ErrSessionDestroyed = errors.New("session has been destroyed")
	// ErrInvalidUserID is returned when binding a non-positive user ID.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrIDGeneration is returned when a session identifier cannot be generated.
	ErrIDGeneration = errors.New("failed to generate session id")
)

// Codec errors. Every *DecodeError also matches ErrDecode.
var (
	ErrDecode           = errors.New("session payload decode failed")
	ErrMissingDelimiter = errors.New("missing delimiter")
	ErrLengthMismatch   = errors.New("string length mismatch")
	ErrInvalidInteger   = errors.New("invalid integer")
	ErrInvalidKey       = errors.New("key contains '|'")
)
