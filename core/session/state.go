package session

import "context"

// Well-known payload keys written by BindUser.
const (
	KeyUserID       = "user_id"
	KeyIPAddress    = "ip_address"
	KeyUserAgent    = "user_agent"
	KeyLoginTime    = "login_time"
	KeyLastActivity = "last_activity"
)

// Status is the lifecycle position of a request's session.
// Expiry is only observed by GC, so there is no expired status.
type Status uint8

const (
	StatusUninitialized Status = iota
	StatusActive
	StatusAuthenticated
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusAuthenticated:
		return "authenticated"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// ClientMeta is the request metadata captured on every write.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// State is the session of a single request. It is owned by that request's
// call stack and must not be shared between goroutines.
type State struct {
	id         string
	previousID string
	values     Values
	status     Status
	client     ClientMeta
	stored     ClientMeta
	loaded     bool
	ephemeral  bool
}

// NewState creates request state for the given identifier and client metadata.
// The identifier comes from the transport; use NewID for fresh sessions.
func NewState(id string, client ClientMeta) *State {
	return &State{
		id:     id,
		values: NewValues(8),
		client: client,
	}
}

// ID returns the current session identifier.
func (s *State) ID() string { return s.id }

// PreviousID returns the identifier replaced by the last rotation, if any.
func (s *State) PreviousID() string { return s.previousID }

// Rotated reports whether the identifier changed during this request.
func (s *State) Rotated() bool { return s.previousID != "" }

// Status returns the lifecycle status.
func (s *State) Status() Status { return s.status }

// Client returns the current request metadata.
func (s *State) Client() ClientMeta { return s.client }

// Stored returns the metadata recorded at the last persisted write.
// The second result is false when no record was loaded.
func (s *State) Stored() (ClientMeta, bool) { return s.stored, s.loaded }

// Ephemeral reports whether persistence failed and the session only lives in memory.
func (s *State) Ephemeral() bool { return s.ephemeral }

// Values returns the session mapping. Mutations are persisted on the next Write.
func (s *State) Values() *Values { return &s.values }

// Get returns a value from the session mapping.
func (s *State) Get(key string) (Value, bool) { return s.values.Get(key) }

// Set stores a value in the session mapping.
func (s *State) Set(key string, v Value) { s.values.Set(key, v) }

// Delete removes a value from the session mapping.
func (s *State) Delete(key string) { s.values.Delete(key) }

// UserID returns the bound user, or 0 for anonymous sessions.
func (s *State) UserID() int64 {
	id, ok := s.values.Int(KeyUserID)
	if !ok || id < 0 {
		return 0
	}
	return id
}

// IsAuthenticated reports whether a user is bound to the session.
func (s *State) IsAuthenticated() bool {
	return s.status != StatusDestroyed && s.UserID() > 0
}

type stateContextKey struct{}

// WithState attaches request state to a context.
func WithState(ctx context.Context, st *State) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if st == nil {
		return ctx
	}
	return context.WithValue(ctx, stateContextKey{}, st)
}

// FromContext returns the request state attached by WithState.
func FromContext(ctx context.Context) (*State, bool) {
	if ctx == nil {
		return nil, false
	}
	st, ok := ctx.Value(stateContextKey{}).(*State)
	return st, ok
}
