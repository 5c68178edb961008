package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wallpaperhub/sessions/core/logger"
)

// Manager runs the session lifecycle against a Store. It holds no
// per-request data: every call receives the request's *State, so one
// Manager is built per process and shared by all requests.
//
// Concurrent requests for the same session identifier are not serialized.
// The last Write wins, and a BindUser rotation can interleave with a plain
// Write under the old identifier issued by a parallel request.
type Manager struct {
	store   Store
	auditor Auditor
	cfg     Config
	log     *slog.Logger
	metrics *Metrics
	newID   func() (string, error)
	now     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithConfig applies configuration options.
func WithConfig(opts ...Option) ManagerOption {
	return func(m *Manager) {
		for _, opt := range opts {
			opt(&m.cfg)
		}
	}
}

// WithSettings replaces the whole configuration, e.g. one loaded from env.
func WithSettings(cfg Config) ManagerOption {
	return func(m *Manager) {
		if cfg.TTL <= 0 {
			cfg.TTL = DefaultConfig().TTL
		}
		m.cfg = cfg
	}
}

// WithAuditor sets the audit bridge.
func WithAuditor(a Auditor) ManagerOption {
	return func(m *Manager) {
		if a != nil {
			m.auditor = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(mt *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithIDGenerator overrides identifier generation, used on rotation.
func WithIDGenerator(fn func() (string, error)) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithClock overrides the clock used for login timestamps and GC.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a session manager backed by store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		auditor: NopAuditor{},
		cfg:     DefaultConfig(),
		log:     logger.Discard(),
		newID:   NewID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("session"))
	return m
}

// Config returns the active configuration.
func (m *Manager) Config() Config { return m.cfg }

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// NewID generates an identifier with the manager's generator.
func (m *Manager) NewID() (string, error) { return m.newID() }

// Init loads the session for st. It is idempotent: an already initialized
// state is left untouched. An identifier with no live record is replaced by
// a freshly generated one, so a client cannot choose its own session id. Store failures degrade the state to an ephemeral
// in-memory session and undecodable payloads yield an empty mapping; neither
// is returned as an error.
func (m *Manager) Init(ctx context.Context, st *State) error {
	if st == nil {
		return ErrNilState
	}
	if st.status != StatusUninitialized {
		m.log.DebugContext(ctx, "session already initialized",
			logger.SessionID(st.id),
			slog.String("status", st.status.String()),
		)
		return nil
	}

	supplied := st.id != ""
	if !supplied {
		id, err := m.newID()
		if err != nil {
			return errors.Join(ErrIDGeneration, err)
		}
		st.id = id
	}
	st.status = StatusActive

	rec, err := m.store.Get(ctx, st.id)
	switch {
	case err == nil:
		vs, derr := Decode(rec.Payload)
		if derr != nil {
			m.metrics.decodeFailed()
			m.log.WarnContext(ctx, "session payload undecodable, starting empty",
				logger.SessionID(st.id),
				logger.Error(derr),
			)
			vs = NewValues(0)
		}
		st.values = vs
		st.stored = ClientMeta{IP: rec.IPAddress, UserAgent: rec.UserAgent}
		st.loaded = true
	case errors.Is(err, ErrNotFound):
		// Unknown or expired identifiers from the client are never adopted.
		if supplied {
			id, err := m.newID()
			if err != nil {
				return errors.Join(ErrIDGeneration, err)
			}
			m.log.DebugContext(ctx, "unknown session identifier replaced",
				logger.SessionID(st.id),
				logger.ClientIP(st.client.IP),
			)
			st.id = id
		}
	default:
		st.ephemeral = true
		m.metrics.persistFailed("read")
		m.log.ErrorContext(ctx, "session load failed, continuing with ephemeral session",
			logger.SessionID(st.id),
			logger.Error(err),
		)
	}

	if st.UserID() > 0 {
		st.status = StatusAuthenticated
	}
	return nil
}

// Write persists the mapping of st under its current identifier with the
// configured TTL. On store failure the state is marked ephemeral, the failure
// is logged, and an error wrapping ErrStoreUnavailable is returned.
// Writing a destroyed session is a no-op.
func (m *Manager) Write(ctx context.Context, st *State) error {
	if st == nil {
		return ErrNilState
	}
	if st.status == StatusDestroyed {
		return nil
	}
	if st.status == StatusUninitialized {
		st.status = StatusActive
	}

	payload, err := Encode(st.values)
	if err != nil {
		m.log.ErrorContext(ctx, "session payload not encodable",
			logger.SessionID(st.id),
			logger.Error(err),
		)
		return err
	}

	err = m.store.Write(ctx, WriteParams{
		ID:        st.id,
		UserID:    st.UserID(),
		Payload:   payload,
		IPAddress: st.client.IP,
		UserAgent: st.client.UserAgent,
		TTL:       m.cfg.TTL,
	})
	if err != nil {
		st.ephemeral = true
		m.metrics.persistFailed("write")
		m.log.ErrorContext(ctx, "session write failed, session is ephemeral for this request",
			logger.SessionID(st.id),
			logger.Error(err),
		)
		return wrapStoreErr(err)
	}

	st.ephemeral = false
	st.stored = st.client
	st.loaded = true
	return nil
}

// BindUser attaches an authenticated user to the session and rotates its
// identifier. The bound fields are written under the old identifier first,
// then the identifier is replaced, the state is written under the new one and
// the old row is deleted. Finally the new row is read back; missing fields are
// re-applied once before ErrRotationVerification is returned.
//
// Reserved keys in extra are ignored. Two simultaneous logins from the same
// pre-login identifier are not serialized and may interleave.
func (m *Manager) BindUser(ctx context.Context, st *State, userID int64, extra Values) error {
	if st == nil {
		return ErrNilState
	}
	if userID <= 0 {
		return ErrInvalidUserID
	}
	if st.status == StatusDestroyed {
		return ErrSessionDestroyed
	}
	if st.status == StatusUninitialized {
		if err := m.Init(ctx, st); err != nil {
			return err
		}
	}

	bound := m.boundFields(st, userID, extra)
	st.values.Merge(bound)

	if err := m.Write(ctx, st); err != nil && !errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if err := m.rotate(ctx, st); err != nil {
		return err
	}

	if err := m.verify(ctx, st, bound); err != nil {
		m.metrics.rotationVerifyFailure()
		m.log.WarnContext(ctx, "session rotation verification failed, re-applying bound fields",
			logger.SessionID(st.id),
			logger.UserID(userID),
			logger.Error(err),
		)
		st.values.Merge(bound)
		if werr := m.Write(ctx, st); werr != nil && !errors.Is(werr, ErrStoreUnavailable) {
			return werr
		}
		if err := m.verify(ctx, st, bound); err != nil {
			m.log.ErrorContext(ctx, "session rotation verification failed after repair",
				logger.SessionID(st.id),
				logger.UserID(userID),
				logger.Error(err),
			)
			return errors.Join(ErrRotationVerification, err)
		}
	}

	st.status = StatusAuthenticated
	m.log.InfoContext(ctx, "session bound to user",
		logger.SessionID(st.id),
		logger.UserID(userID),
		slog.Bool("ephemeral", st.ephemeral),
	)
	return nil
}

func (m *Manager) boundFields(st *State, userID int64, extra Values) Values {
	now := m.now().Unix()
	bound := NewValues(5 + extra.Len())
	bound.Set(KeyUserID, Int(userID))
	bound.Set(KeyIPAddress, String(st.client.IP))
	bound.Set(KeyUserAgent, String(st.client.UserAgent))
	bound.Set(KeyLoginTime, Int(now))
	bound.Set(KeyLastActivity, Int(now))
	for k, v := range extra.All {
		if bound.Has(k) {
			continue
		}
		bound.Set(k, v)
	}
	return bound
}

// rotate moves st to a fresh identifier and removes the old row.
func (m *Manager) rotate(ctx context.Context, st *State) error {
	newID, err := m.newID()
	if err != nil {
		return errors.Join(ErrIDGeneration, err)
	}

	oldID := st.id
	st.id = newID
	st.previousID = oldID

	if err := m.Write(ctx, st); err != nil && !errors.Is(err, ErrStoreUnavailable) {
		return err
	}

	// The old row carries authenticated state under a possibly attacker-known
	// identifier, so it is removed even when the new write failed.
	if err := m.store.Destroy(ctx, oldID); err != nil {
		m.metrics.persistFailed("destroy")
		m.log.ErrorContext(ctx, "failed to delete pre-rotation session",
			logger.SessionID(oldID),
			logger.Error(err),
		)
	}

	m.metrics.rotated()
	m.log.DebugContext(ctx, "session identifier rotated",
		slog.String("old_session_id", logger.MaskSessionID(oldID)),
		logger.SessionID(newID),
	)
	return nil
}

// verify checks that every bound field is present in memory and, unless the
// session is ephemeral, in the row stored under the current identifier.
// A failed read back is counted as a verification failure but does not
// reject the login.
func (m *Manager) verify(ctx context.Context, st *State, bound Values) error {
	if err := containsAll(st.values, bound); err != nil {
		return fmt.Errorf("in memory: %w", err)
	}
	if st.ephemeral {
		return nil
	}

	payload, err := m.store.Read(ctx, st.id)
	if err != nil {
		// The login proceeds on the in-memory check alone.
		m.metrics.rotationVerifyFailure()
		m.log.ErrorContext(ctx, "session rotation verification skipped, store read failed",
			logger.SessionID(st.id),
			logger.Error(err),
		)
		return nil
	}
	if payload == nil {
		return errors.New("no record under rotated identifier")
	}
	stored, err := Decode(payload)
	if err != nil {
		return err
	}
	if err := containsAll(stored, bound); err != nil {
		return fmt.Errorf("in store: %w", err)
	}
	return nil
}

func containsAll(have, want Values) error {
	for k, v := range want.All {
		got, ok := have.Get(k)
		if !ok {
			return fmt.Errorf("field %q missing", k)
		}
		if got != v {
			return fmt.Errorf("field %q is %s, want %s", k, got, v)
		}
	}
	return nil
}

// Drift describes how the current request differs from the stored session.
type Drift struct {
	IPChanged        bool
	UserAgentChanged bool
	Stored           ClientMeta
	Current          ClientMeta
}

// Detected reports whether anything changed.
func (d Drift) Detected() bool { return d.IPChanged || d.UserAgentChanged }

// ValidateDrift compares the stored IP and user agent with the current
// request. Drift is logged as a warning; only when EnforceDrift is set is the
// session destroyed and ErrDrift returned. The destroy is reported to the
// Auditor as a logout.
func (m *Manager) ValidateDrift(ctx context.Context, st *State) (Drift, error) {
	if st == nil {
		return Drift{}, ErrNilState
	}
	stored, ok := st.Stored()
	if !ok || st.status == StatusDestroyed {
		return Drift{}, nil
	}

	d := Drift{
		IPChanged:        stored.IP != "" && stored.IP != st.client.IP,
		UserAgentChanged: stored.UserAgent != "" && stored.UserAgent != st.client.UserAgent,
		Stored:           stored,
		Current:          st.client,
	}
	if !d.Detected() {
		return d, nil
	}

	m.metrics.drift()
	m.log.WarnContext(ctx, "session client drift",
		logger.SessionID(st.id),
		logger.UserID(st.UserID()),
		slog.Bool("ip_changed", d.IPChanged),
		slog.Bool("user_agent_changed", d.UserAgentChanged),
		slog.String("stored_ip", stored.IP),
		logger.ClientIP(st.client.IP),
		logger.UserAgent(st.client.UserAgent),
		slog.Bool("enforced", m.cfg.EnforceDrift),
	)

	if !m.cfg.EnforceDrift {
		return d, nil
	}
	if err := m.Destroy(ctx, st); err != nil {
		return d, errors.Join(ErrDrift, err)
	}
	return d, ErrDrift
}

// Touch refreshes last_activity on authenticated sessions.
func (m *Manager) Touch(st *State) {
	if st == nil || !st.IsAuthenticated() {
		return
	}
	st.values.Set(KeyLastActivity, Int(m.now().Unix()))
}

// Destroy ends the session: the mapping is cleared, the row deleted and the
// audit bridge notified of the logout. The transport is responsible for
// expiring the client's identifier once the state reports StatusDestroyed.
func (m *Manager) Destroy(ctx context.Context, st *State) error {
	if st == nil {
		return ErrNilState
	}
	if st.status == StatusDestroyed {
		return nil
	}

	id, userID := st.id, st.UserID()
	st.values.Clear()
	st.status = StatusDestroyed

	var err error
	if derr := m.store.Destroy(ctx, id); derr != nil {
		m.metrics.persistFailed("destroy")
		m.log.ErrorContext(ctx, "session delete failed",
			logger.SessionID(id),
			logger.Error(derr),
		)
		err = wrapStoreErr(derr)
	}

	m.notify(ctx, EventLoggedOut, id, func(ctx context.Context) error {
		return m.auditor.NotifyLoggedOut(ctx, id, userID)
	})
	m.log.InfoContext(ctx, "session destroyed",
		logger.SessionID(id),
		logger.UserID(userID),
	)
	return err
}

// GC sweeps expired sessions, notifying the audit bridge of each one before
// it is deleted.
func (m *Manager) GC(ctx context.Context) (int64, error) {
	start := m.now()
	n, err := m.store.GC(ctx, start, func(ctx context.Context, id string) {
		m.notify(ctx, EventExpired, id, func(ctx context.Context) error {
			return m.auditor.NotifyExpired(ctx, id)
		})
	})
	if err != nil {
		m.metrics.persistFailed("gc")
		m.log.ErrorContext(ctx, "session gc failed", logger.Error(err))
		return n, wrapStoreErr(err)
	}

	m.metrics.removed(n)
	m.log.InfoContext(ctx, "session gc finished",
		logger.Count("removed", n),
		logger.Elapsed(start),
	)
	return n, nil
}

// notify calls the audit bridge with a timeout and swallows every failure.
func (m *Manager) notify(ctx context.Context, event, id string, fn func(context.Context) error) {
	nctx := ctx
	if m.cfg.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, m.cfg.NotifyTimeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("auditor panic: %v", r)
			}
		}()
		return fn(nctx)
	}()
	if err != nil {
		m.metrics.notifyFailed(event)
		m.log.WarnContext(ctx, "session audit notification failed",
			logger.Event(event),
			logger.SessionID(id),
			logger.Error(errors.Join(ErrNotify, err)),
		)
	}
}

// IDLength is the length of identifiers produced by NewID.
const IDLength = 43

// NewID creates a cryptographically secure random identifier using 32 bytes
// (256 bits) encoded as base64 URL-safe string without padding.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrIDGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}
