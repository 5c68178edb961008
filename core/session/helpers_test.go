package session_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/wallpaperhub/sessions/core/session"
)

// clock is a manually advanced time source shared by store and manager.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(unix int64) *clock {
	return &clock{now: time.Unix(unix, 0)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(unix int64) {
	c.mu.Lock()
	c.now = time.Unix(unix, 0)
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// sequentialIDs returns "C", "D", ... on successive calls.
func sequentialIDs(first byte) func() (string, error) {
	var mu sync.Mutex
	next := first
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		id := string(next)
		next++
		return id, nil
	}
}

// recordingAuditor remembers every notification in order.
type recordingAuditor struct {
	mu        sync.Mutex
	expired   []string
	loggedOut []string
	users     []int64
	err       error
	onExpired func(id string)
}

func (a *recordingAuditor) NotifyExpired(_ context.Context, id string) error {
	a.mu.Lock()
	a.expired = append(a.expired, id)
	fn := a.onExpired
	a.mu.Unlock()
	if fn != nil {
		fn(id)
	}
	return a.err
}

func (a *recordingAuditor) NotifyLoggedOut(_ context.Context, id string, userID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut = append(a.loggedOut, id)
	a.users = append(a.users, userID)
	return a.err
}

func (a *recordingAuditor) Expired() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.expired...)
}

func (a *recordingAuditor) LoggedOut() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.loggedOut...)
}

// mockStore implements session.AdminStore for failure-path tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Read(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*session.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Record), args.Error(1)
}

func (m *mockStore) Write(ctx context.Context, p session.WriteParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockStore) Destroy(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) GC(ctx context.Context, now time.Time, notify session.ExpiredFunc) (int64, error) {
	args := m.Called(ctx, now, notify)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Stats(ctx context.Context, now time.Time) (session.Stats, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(session.Stats), args.Error(1)
}

func (m *mockStore) ListActive(ctx context.Context, now time.Time, f session.ListFilter) ([]session.Record, error) {
	args := m.Called(ctx, now, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]session.Record), args.Error(1)
}

func (m *mockStore) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var errDBDown = fmt.Errorf("dial tcp 127.0.0.1:5432: connection refused")
