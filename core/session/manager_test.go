package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wallpaperhub/sessions/core/session"
)

var client = session.ClientMeta{IP: "203.0.113.7", UserAgent: "Mozilla/5.0"}

func newTestManager(store session.Store, clk *clock, opts ...session.ManagerOption) *session.Manager {
	base := []session.ManagerOption{
		session.WithClock(clk.Now),
		session.WithIDGenerator(sequentialIDs('C')),
		session.WithConfig(session.WithTTL(time.Hour)),
	}
	return session.NewManager(store, append(base, opts...)...)
}

// flakyReadStore corrupts the first badReads payload reads.
type flakyReadStore struct {
	*session.MemoryStore
	badReads int
}

func (s *flakyReadStore) Read(ctx context.Context, id string) ([]byte, error) {
	if s.badReads > 0 {
		s.badReads--
		return []byte("unrelated|i:1;"), nil
	}
	return s.MemoryStore.Read(ctx, id)
}

// readFailStore fails every payload read.
type readFailStore struct {
	*session.MemoryStore
}

func (s *readFailStore) Read(context.Context, string) ([]byte, error) {
	return nil, errDBDown
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	t.Run("uses defaults", func(t *testing.T) {
		t.Parallel()
		mgr := session.NewManager(session.NewMemoryStore())

		assert.Equal(t, session.DefaultConfig(), mgr.Config())
	})

	t.Run("settings replace configuration", func(t *testing.T) {
		t.Parallel()
		mgr := session.NewManager(session.NewMemoryStore(), session.WithSettings(session.Config{
			TTL:          time.Minute,
			EnforceDrift: true,
		}))

		assert.Equal(t, time.Minute, mgr.Config().TTL)
		assert.True(t, mgr.Config().EnforceDrift)
	})

	t.Run("generated ids are unique and url safe", func(t *testing.T) {
		t.Parallel()
		a, err := session.NewID()
		require.NoError(t, err)
		b, err := session.NewID()
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
		assert.Len(t, a, session.IDLength)
		assert.NotContains(t, a, "+")
		assert.NotContains(t, a, "/")
		assert.True(t, session.ValidID(a))
	})

	t.Run("valid id shape", func(t *testing.T) {
		t.Parallel()
		assert.False(t, session.ValidID(""))
		assert.False(t, session.ValidID("attacker-picked"))
		assert.False(t, session.ValidID(strings.Repeat("a", 4000)))
		assert.False(t, session.ValidID(strings.Repeat("a", 42)+"."))
		assert.True(t, session.ValidID(strings.Repeat("aZ9-_", 8)+"abc"))
	})
}

func TestManager_Init(t *testing.T) {
	t.Parallel()

	t.Run("unknown id is replaced by a fresh identifier", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		mgr := newTestManager(store, clk)
		ctx := context.Background()
		st := session.NewState("attacker-picked", client)

		require.NoError(t, mgr.Init(ctx, st))
		require.NoError(t, mgr.Write(ctx, st))

		assert.Equal(t, "C", st.ID())
		planted, err := store.Read(ctx, "attacker-picked")
		require.NoError(t, err)
		assert.Nil(t, planted, "client supplied id is never persisted")
		assert.Equal(t, session.StatusActive, st.Status())
		assert.Equal(t, 0, st.Values().Len())
		assert.False(t, st.Ephemeral())
		_, loaded := st.Stored()
		assert.False(t, loaded)
	})

	t.Run("expired id is replaced by a fresh identifier", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		ctx := context.Background()
		require.NoError(t, store.Write(ctx, session.WriteParams{ID: "A", Payload: []byte("a|i:1;"), TTL: time.Minute}))
		clk.Advance(time.Hour)
		mgr := newTestManager(store, clk)
		st := session.NewState("A", client)

		require.NoError(t, mgr.Init(ctx, st))

		assert.Equal(t, "C", st.ID())
		assert.Equal(t, 0, st.Values().Len())
	})

	t.Run("loads stored payload and metadata", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		ctx := context.Background()
		require.NoError(t, store.Write(ctx, session.WriteParams{
			ID: "A", UserID: 42, Payload: []byte(`user_id|i:42;theme|s:4:"dark";`),
			IPAddress: "198.51.100.1", UserAgent: "curl/8", TTL: time.Hour,
		}))
		mgr := newTestManager(store, clk)
		st := session.NewState("A", client)

		require.NoError(t, mgr.Init(ctx, st))

		assert.Equal(t, session.StatusAuthenticated, st.Status())
		assert.Equal(t, int64(42), st.UserID())
		theme, _ := st.Values().Str("theme")
		assert.Equal(t, "dark", theme)
		stored, loaded := st.Stored()
		assert.True(t, loaded)
		assert.Equal(t, session.ClientMeta{IP: "198.51.100.1", UserAgent: "curl/8"}, stored)
	})

	t.Run("empty id gets a generated identifier", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		mgr := newTestManager(session.NewMemoryStore(), clk)
		st := session.NewState("", client)

		require.NoError(t, mgr.Init(context.Background(), st))

		assert.Equal(t, "C", st.ID())
	})

	t.Run("second init is a no-op", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		mgr := newTestManager(store, clk)
		ctx := context.Background()
		st := session.NewState("", client)
		require.NoError(t, mgr.Init(ctx, st))
		st.Set("local", session.Int(1))

		require.NoError(t, store.Write(ctx, session.WriteParams{ID: st.ID(), Payload: []byte("other|i:2;"), TTL: time.Hour}))
		require.NoError(t, mgr.Init(ctx, st))

		assert.True(t, st.Values().Has("local"))
		assert.False(t, st.Values().Has("other"))
	})

	t.Run("store failure degrades to ephemeral session", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("Get", mock.Anything, "A").Return(nil, errors.Join(session.ErrStoreUnavailable, errDBDown))
		mgr := newTestManager(store, newClock(1000))
		st := session.NewState("A", client)

		err := mgr.Init(context.Background(), st)

		require.NoError(t, err)
		assert.True(t, st.Ephemeral())
		assert.Equal(t, session.StatusActive, st.Status())
		store.AssertExpectations(t)
	})

	t.Run("undecodable payload yields empty mapping", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		ctx := context.Background()
		require.NoError(t, store.Write(ctx, session.WriteParams{ID: "A", Payload: []byte(`user_id|i:42;broken|s:99:"x";`), TTL: time.Hour}))
		reg := prometheus.NewRegistry()
		mgr := newTestManager(store, clk, session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(reg))))
		st := session.NewState("A", client)

		require.NoError(t, mgr.Init(ctx, st))

		assert.Equal(t, 0, st.Values().Len())
		assert.Equal(t, session.StatusActive, st.Status())
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP wallpaper_session_decode_failures_total Session payloads that failed to decode
# TYPE wallpaper_session_decode_failures_total counter
wallpaper_session_decode_failures_total 1
`), "wallpaper_session_decode_failures_total"))
	})

	t.Run("nil state", func(t *testing.T) {
		t.Parallel()
		mgr := newTestManager(session.NewMemoryStore(), newClock(1000))

		assert.ErrorIs(t, mgr.Init(context.Background(), nil), session.ErrNilState)
	})
}

func TestManager_Write(t *testing.T) {
	t.Parallel()

	t.Run("persists mapping with user and client metadata", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		mgr := newTestManager(store, clk)
		ctx := context.Background()
		st := session.NewState("", client)
		require.NoError(t, mgr.Init(ctx, st))
		st.Set(session.KeyUserID, session.Int(42))
		st.Set("theme", session.String("dark"))

		require.NoError(t, mgr.Write(ctx, st))

		rec, err := store.Get(ctx, st.ID())
		require.NoError(t, err)
		assert.Equal(t, int64(42), rec.UserID)
		assert.Equal(t, client.IP, rec.IPAddress)
		assert.Equal(t, client.UserAgent, rec.UserAgent)
		assert.Equal(t, time.Unix(1000, 0).Add(time.Hour), rec.ExpiresAt)
		assert.Equal(t, `user_id|i:42;theme|s:4:"dark";`, string(rec.Payload))
	})

	t.Run("store failure marks state ephemeral", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("Write", mock.Anything, mock.MatchedBy(func(p session.WriteParams) bool { return p.ID == "A" })).Return(errDBDown)
		mgr := newTestManager(store, newClock(1000))
		st := session.NewState("A", client)

		err := mgr.Write(context.Background(), st)

		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrStoreUnavailable)
		assert.True(t, st.Ephemeral())
		store.AssertExpectations(t)
	})

	t.Run("destroyed session is not written", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		mgr := newTestManager(store, clk)
		ctx := context.Background()
		st := session.NewState("", client)
		require.NoError(t, mgr.Init(ctx, st))
		require.NoError(t, mgr.Destroy(ctx, st))

		require.NoError(t, mgr.Write(ctx, st))

		payload, err := store.Read(ctx, st.ID())
		require.NoError(t, err)
		assert.Nil(t, payload)
	})

	t.Run("unencodable key is returned", func(t *testing.T) {
		t.Parallel()
		mgr := newTestManager(session.NewMemoryStore(), newClock(1000))
		st := session.NewState("A", client)
		st.Set("a|b", session.Int(1))

		assert.ErrorIs(t, mgr.Write(context.Background(), st), session.ErrInvalidKey)
	})
}

func TestManager_BindUser(t *testing.T) {
	t.Parallel()

	t.Run("rotates identifier and moves authenticated payload", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		reg := prometheus.NewRegistry()
		mgr := newTestManager(store, clk, session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(reg))))
		ctx := context.Background()
		require.NoError(t, store.Write(ctx, session.WriteParams{ID: "B", IPAddress: client.IP, UserAgent: client.UserAgent, TTL: time.Hour}))

		st := session.NewState("B", client)
		require.NoError(t, mgr.Init(ctx, st))
		st.Set("cart", session.String("wallpaper-9"))
		require.NoError(t, mgr.Write(ctx, st))

		extra := session.NewValues(2)
		extra.Set("role", session.String("admin"))
		extra.Set(session.KeyUserID, session.Int(999))

		require.NoError(t, mgr.BindUser(ctx, st, 42, extra))

		assert.Equal(t, "C", st.ID())
		assert.Equal(t, "B", st.PreviousID())
		assert.True(t, st.Rotated())
		assert.Equal(t, session.StatusAuthenticated, st.Status())
		assert.True(t, st.IsAuthenticated())

		old, err := store.Read(ctx, "B")
		require.NoError(t, err)
		assert.Nil(t, old, "pre-login identifier must not survive")

		payload, err := store.Read(ctx, "C")
		require.NoError(t, err)
		vs, err := session.Decode(payload)
		require.NoError(t, err)
		uid, _ := vs.Int(session.KeyUserID)
		assert.Equal(t, int64(42), uid, "reserved keys in extra are ignored")
		ip, _ := vs.Str(session.KeyIPAddress)
		assert.Equal(t, client.IP, ip)
		ua, _ := vs.Str(session.KeyUserAgent)
		assert.Equal(t, client.UserAgent, ua)
		login, _ := vs.Int(session.KeyLoginTime)
		assert.Equal(t, int64(1000), login)
		last, _ := vs.Int(session.KeyLastActivity)
		assert.Equal(t, int64(1000), last)
		role, _ := vs.Str("role")
		assert.Equal(t, "admin", role)
		cart, _ := vs.Str("cart")
		assert.Equal(t, "wallpaper-9", cart, "pre-login payload is carried over")

		rec, err := store.Get(ctx, "C")
		require.NoError(t, err)
		assert.Equal(t, int64(42), rec.UserID)

		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP wallpaper_session_rotations_total Session identifier rotations after login
# TYPE wallpaper_session_rotations_total counter
wallpaper_session_rotations_total 1
`), "wallpaper_session_rotations_total"))
	})

	t.Run("persists before rotating", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		var order []string
		store.On("Get", mock.Anything, "B").Return(&session.Record{ID: "B"}, nil)
		store.On("Write", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			p := args.Get(1).(session.WriteParams)
			order = append(order, "write:"+p.ID)
		}).Return(nil)
		store.On("Destroy", mock.Anything, "B").Run(func(mock.Arguments) {
			order = append(order, "destroy:B")
		}).Return(nil)
		store.On("Read", mock.Anything, "C").Return([]byte(nil), nil)
		mgr := newTestManager(store, newClock(1000))
		st := session.NewState("B", client)

		err := mgr.BindUser(context.Background(), st, 42, session.Values{})

		// The mock never returns the payload, so verification fails after repair.
		assert.ErrorIs(t, err, session.ErrRotationVerification)
		assert.Equal(t, []string{"write:B", "write:C", "destroy:B", "write:C"}, order)
	})

	t.Run("repairs a rotation missing bound fields", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := &flakyReadStore{MemoryStore: session.NewMemoryStore(session.WithMemoryClock(clk.Now)), badReads: 1}
		reg := prometheus.NewRegistry()
		mgr := newTestManager(store, clk, session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(reg))))
		st := session.NewState("B", client)

		require.NoError(t, mgr.BindUser(context.Background(), st, 42, session.Values{}))

		assert.Equal(t, session.StatusAuthenticated, st.Status())
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP wallpaper_session_rotation_verification_failures_total Rotations whose bound fields were missing afterwards
# TYPE wallpaper_session_rotation_verification_failures_total counter
wallpaper_session_rotation_verification_failures_total 1
`), "wallpaper_session_rotation_verification_failures_total"))
	})

	t.Run("unreadable rotated row is counted as a verification failure", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := &readFailStore{MemoryStore: session.NewMemoryStore(session.WithMemoryClock(clk.Now))}
		reg := prometheus.NewRegistry()
		mgr := newTestManager(store, clk, session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(reg))))
		st := session.NewState("", client)

		require.NoError(t, mgr.BindUser(context.Background(), st, 42, session.Values{}))

		assert.Equal(t, session.StatusAuthenticated, st.Status())
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP wallpaper_session_rotation_verification_failures_total Rotations whose bound fields were missing afterwards
# TYPE wallpaper_session_rotation_verification_failures_total counter
wallpaper_session_rotation_verification_failures_total 1
`), "wallpaper_session_rotation_verification_failures_total"))
	})

	t.Run("persistent verification failure is an authentication error", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := &flakyReadStore{MemoryStore: session.NewMemoryStore(session.WithMemoryClock(clk.Now)), badReads: 10}
		mgr := newTestManager(store, clk)
		st := session.NewState("B", client)

		err := mgr.BindUser(context.Background(), st, 42, session.Values{})

		assert.ErrorIs(t, err, session.ErrRotationVerification)
		assert.NotEqual(t, session.StatusAuthenticated, st.Status())
	})

	t.Run("store outage still rotates in memory", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("Get", mock.Anything, "B").Return(nil, errDBDown)
		store.On("Write", mock.Anything, mock.Anything).Return(errDBDown)
		store.On("Destroy", mock.Anything, "B").Return(errDBDown)
		mgr := newTestManager(store, newClock(1000))
		st := session.NewState("B", client)

		require.NoError(t, mgr.BindUser(context.Background(), st, 42, session.Values{}))

		assert.Equal(t, "C", st.ID())
		assert.True(t, st.Ephemeral())
		assert.Equal(t, int64(42), st.UserID())
		store.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()
		mgr := newTestManager(session.NewMemoryStore(), newClock(1000))
		ctx := context.Background()

		assert.ErrorIs(t, mgr.BindUser(ctx, nil, 1, session.Values{}), session.ErrNilState)
		assert.ErrorIs(t, mgr.BindUser(ctx, session.NewState("B", client), 0, session.Values{}), session.ErrInvalidUserID)

		st := session.NewState("B", client)
		require.NoError(t, mgr.Init(ctx, st))
		require.NoError(t, mgr.Destroy(ctx, st))
		assert.ErrorIs(t, mgr.BindUser(ctx, st, 1, session.Values{}), session.ErrSessionDestroyed)
	})

	t.Run("extra field with invalid key aborts before rotation", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		require.NoError(t, store.Write(context.Background(), session.WriteParams{ID: "B", TTL: time.Hour}))
		mgr := newTestManager(store, clk)
		st := session.NewState("B", client)
		extra := session.NewValues(1)
		extra.Set("bad|key", session.Int(1))

		err := mgr.BindUser(context.Background(), st, 42, extra)

		assert.ErrorIs(t, err, session.ErrInvalidKey)
		assert.Equal(t, "B", st.ID())
	})
}

func TestManager_ValidateDrift(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, store *session.MemoryStore) {
		t.Helper()
		require.NoError(t, store.Write(context.Background(), session.WriteParams{
			ID: "A", UserID: 42, Payload: []byte("user_id|i:42;"),
			IPAddress: "198.51.100.1", UserAgent: "Mozilla/5.0", TTL: time.Hour,
		}))
	}

	t.Run("no drift", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		seed(t, store)
		mgr := newTestManager(store, clk)
		ctx := context.Background()
		st := session.NewState("A", session.ClientMeta{IP: "198.51.100.1", UserAgent: "Mozilla/5.0"})
		require.NoError(t, mgr.Init(ctx, st))

		d, err := mgr.ValidateDrift(ctx, st)

		require.NoError(t, err)
		assert.False(t, d.Detected())
	})

	t.Run("drift is reported but not enforced by default", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		seed(t, store)
		reg := prometheus.NewRegistry()
		mgr := newTestManager(store, clk, session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(reg))))
		ctx := context.Background()
		st := session.NewState("A", session.ClientMeta{IP: "192.0.2.9", UserAgent: "Mozilla/5.0"})
		require.NoError(t, mgr.Init(ctx, st))

		d, err := mgr.ValidateDrift(ctx, st)

		require.NoError(t, err)
		assert.True(t, d.IPChanged)
		assert.False(t, d.UserAgentChanged)
		assert.Equal(t, session.StatusAuthenticated, st.Status())
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP wallpaper_session_drift_warnings_total Requests whose IP or user agent differed from the stored session
# TYPE wallpaper_session_drift_warnings_total counter
wallpaper_session_drift_warnings_total 1
`), "wallpaper_session_drift_warnings_total"))
	})

	t.Run("enforced drift destroys the session and reports a logout", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		seed(t, store)
		auditor := &recordingAuditor{}
		mgr := newTestManager(store, clk,
			session.WithConfig(session.WithEnforceDrift(true)),
			session.WithAuditor(auditor),
		)
		ctx := context.Background()
		st := session.NewState("A", session.ClientMeta{IP: "198.51.100.1", UserAgent: "Evil/1.0"})
		require.NoError(t, mgr.Init(ctx, st))

		d, err := mgr.ValidateDrift(ctx, st)

		assert.ErrorIs(t, err, session.ErrDrift)
		assert.True(t, d.UserAgentChanged)
		assert.Equal(t, session.StatusDestroyed, st.Status())
		payload, rerr := store.Read(ctx, "A")
		require.NoError(t, rerr)
		assert.Nil(t, payload)
		assert.Equal(t, []string{"A"}, auditor.LoggedOut())
	})

	t.Run("fresh session has nothing to compare", func(t *testing.T) {
		t.Parallel()
		mgr := newTestManager(session.NewMemoryStore(), newClock(1000), session.WithConfig(session.WithEnforceDrift(true)))
		ctx := context.Background()
		st := session.NewState("new", client)
		require.NoError(t, mgr.Init(ctx, st))

		d, err := mgr.ValidateDrift(ctx, st)

		require.NoError(t, err)
		assert.False(t, d.Detected())
	})
}

func TestManager_Destroy(t *testing.T) {
	t.Parallel()

	t.Run("clears state, deletes row and notifies logout", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		auditor := &recordingAuditor{}
		mgr := newTestManager(store, clk, session.WithAuditor(auditor))
		ctx := context.Background()
		st := session.NewState("", client)
		require.NoError(t, mgr.BindUser(ctx, st, 42, session.Values{}))
		id := st.ID()

		require.NoError(t, mgr.Destroy(ctx, st))

		assert.Equal(t, session.StatusDestroyed, st.Status())
		assert.Equal(t, 0, st.Values().Len())
		assert.False(t, st.IsAuthenticated())
		payload, err := store.Read(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, payload)
		assert.Equal(t, []string{id}, auditor.LoggedOut())
		assert.Equal(t, []int64{42}, auditor.users)
	})

	t.Run("auditor failure does not fail destroy", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		auditor := &recordingAuditor{err: errors.New("audit db down")}
		mgr := newTestManager(session.NewMemoryStore(session.WithMemoryClock(clk.Now)), clk, session.WithAuditor(auditor))
		ctx := context.Background()
		st := session.NewState("", client)
		require.NoError(t, mgr.Init(ctx, st))

		assert.NoError(t, mgr.Destroy(ctx, st))
		assert.Equal(t, []string{"C"}, auditor.LoggedOut())
	})

	t.Run("store failure is returned but session is still destroyed", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("Destroy", mock.Anything, "A").Return(errDBDown)
		auditor := &recordingAuditor{}
		mgr := newTestManager(store, newClock(1000), session.WithAuditor(auditor))
		st := session.NewState("A", client)

		err := mgr.Destroy(context.Background(), st)

		assert.ErrorIs(t, err, session.ErrStoreUnavailable)
		assert.Equal(t, session.StatusDestroyed, st.Status())
		assert.Equal(t, []string{"A"}, auditor.LoggedOut())
	})

	t.Run("second destroy is a no-op", func(t *testing.T) {
		t.Parallel()
		auditor := &recordingAuditor{}
		mgr := newTestManager(session.NewMemoryStore(), newClock(1000), session.WithAuditor(auditor))
		ctx := context.Background()
		st := session.NewState("A", client)

		require.NoError(t, mgr.Destroy(ctx, st))
		require.NoError(t, mgr.Destroy(ctx, st))

		assert.Len(t, auditor.LoggedOut(), 1)
	})
}

func TestManager_Touch(t *testing.T) {
	t.Parallel()

	clk := newClock(1000)
	mgr := newTestManager(session.NewMemoryStore(session.WithMemoryClock(clk.Now)), clk)
	ctx := context.Background()

	anon := session.NewState("A", client)
	require.NoError(t, mgr.Init(ctx, anon))
	mgr.Touch(anon)
	assert.False(t, anon.Values().Has(session.KeyLastActivity))

	st := session.NewState("B", client)
	require.NoError(t, mgr.BindUser(ctx, st, 42, session.Values{}))
	clk.Advance(time.Minute)
	mgr.Touch(st)
	last, _ := st.Values().Int(session.KeyLastActivity)
	assert.Equal(t, int64(1060), last)
}

func TestManager_GC(t *testing.T) {
	t.Parallel()

	t.Run("sweeps expired sessions and notifies each once before deletion", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		auditor := &recordingAuditor{}
		var presentWhenNotified []bool
		auditor.onExpired = func(id string) {
			st, _ := store.Stats(context.Background(), time.Unix(0, 0))
			presentWhenNotified = append(presentWhenNotified, st.Total == 2)
		}
		mgr := newTestManager(store, clk, session.WithAuditor(auditor))
		ctx := context.Background()

		a := session.NewState("A", client)
		a.Set(session.KeyUserID, session.Int(42))
		a.Set(session.KeyLoginTime, session.Int(1000))
		require.NoError(t, mgr.Write(ctx, a))
		clk.Set(4000)
		keep := session.NewState("K", client)
		require.NoError(t, mgr.Write(ctx, keep))

		clk.Set(5000)
		n, err := mgr.GC(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, []string{"A"}, auditor.Expired())
		assert.Equal(t, []bool{true}, presentWhenNotified)
		payload, err := store.Read(ctx, "K")
		require.NoError(t, err)
		assert.NotNil(t, payload)
	})

	t.Run("failing or panicking auditor does not block gc", func(t *testing.T) {
		t.Parallel()
		clk := newClock(1000)
		store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
		reg := prometheus.NewRegistry()
		mgr := newTestManager(store, clk,
			session.WithAuditor(session.AuditorFuncs{
				Expired: func(context.Context, string) error { panic("boom") },
			}),
			session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(reg))),
		)
		ctx := context.Background()
		require.NoError(t, mgr.Write(ctx, session.NewState("A", client)))
		require.NoError(t, mgr.Write(ctx, session.NewState("B", client)))
		clk.Advance(2 * time.Hour)

		n, err := mgr.GC(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP wallpaper_session_gc_removed_total Expired sessions removed by garbage collection
# TYPE wallpaper_session_gc_removed_total counter
wallpaper_session_gc_removed_total 2
# HELP wallpaper_session_notify_failures_total Audit notifications that failed
# TYPE wallpaper_session_notify_failures_total counter
wallpaper_session_notify_failures_total{event="session_expired"} 2
`), "wallpaper_session_gc_removed_total", "wallpaper_session_notify_failures_total"))
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("GC", mock.Anything, time.Unix(1000, 0), mock.Anything).Return(int64(0), errDBDown)
		mgr := newTestManager(store, newClock(1000))

		_, err := mgr.GC(context.Background())

		assert.ErrorIs(t, err, session.ErrStoreUnavailable)
		store.AssertExpectations(t)
	})
}

// Scenario: bindUser(42) under pre-login id "B" ends on a new id "C";
// "B" reads empty and "C" holds user_id 42.
func TestManager_LoginScenario(t *testing.T) {
	t.Parallel()

	clk := newClock(1000)
	store := session.NewMemoryStore(session.WithMemoryClock(clk.Now))
	mgr := newTestManager(store, clk)
	ctx := context.Background()

	require.NoError(t, mgr.Write(ctx, session.NewState("B", client)))

	st := session.NewState("B", client)
	require.NoError(t, mgr.Init(ctx, st))
	require.NoError(t, mgr.BindUser(ctx, st, 42, session.Values{}))
	require.NoError(t, mgr.Write(ctx, st))

	assert.Equal(t, "C", st.ID())
	b, err := store.Read(ctx, "B")
	require.NoError(t, err)
	assert.Nil(t, b)

	c, err := store.Read(ctx, st.ID())
	require.NoError(t, err)
	vs, err := session.Decode(c)
	require.NoError(t, err)
	uid, ok := vs.Int(session.KeyUserID)
	assert.True(t, ok)
	assert.Equal(t, int64(42), uid)
}
