package session

import (
	"context"
	"time"
)

// Record is one persisted session row.
type Record struct {
	ID        string
	UserID    int64 // 0 for anonymous sessions
	Payload   []byte
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the record is still valid at now.
func (r Record) Active(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// LoggedIn reports whether a user is bound to the record.
func (r Record) LoggedIn() bool {
	return r.UserID > 0
}

// WriteParams describes one upsert.
type WriteParams struct {
	ID        string
	UserID    int64
	Payload   []byte
	IPAddress string
	UserAgent string
	TTL       time.Duration
}

// ExpiredFunc is called by GC for every expired session before it is deleted.
type ExpiredFunc func(ctx context.Context, id string)

// Store defines the persistence interface for session records.
// Reads never return expired rows, even before they are swept.
type Store interface {
	// Read returns the payload of an active session, or nil when absent or expired.
	Read(ctx context.Context, id string) ([]byte, error)
	// Get returns the full active record or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// Write inserts the record or overwrites every mutable field of the existing one.
	Write(ctx context.Context, p WriteParams) error
	// Destroy deletes the record. A missing record is not an error.
	Destroy(ctx context.Context, id string) error
	// GC removes every record with expires_at < now, calling notify for each
	// one before the delete, and returns the number removed.
	GC(ctx context.Context, now time.Time, notify ExpiredFunc) (int64, error)
}

// Stats aggregates session counts at a point in time.
type Stats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Expired  int64 `json:"expired"`
	LoggedIn int64 `json:"logged_in"`
}

// ListFilter narrows ListActive. Zero UserID means all users.
type ListFilter struct {
	UserID int64
	Limit  int
}

// AdminStore is implemented by stores that support administrative introspection.
type AdminStore interface {
	Store
	Stats(ctx context.Context, now time.Time) (Stats, error)
	// ListActive returns active records, most recently updated first.
	ListActive(ctx context.Context, now time.Time, f ListFilter) ([]Record, error)
	// DeleteAll removes every record, active or not.
	DeleteAll(ctx context.Context) (int64, error)
}
