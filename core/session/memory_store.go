package session

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process AdminStore for development and tests.
// It is safe for concurrent use but, like every Store, offers no
// per-session locking across requests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Record
	now  func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for expiry and timestamps.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		rows: make(map[string]Record),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil
	}
	return rec.Payload, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rows[id]
	if !ok || !rec.Active(s.now()) {
		return nil, ErrNotFound
	}
	rec.Payload = bytes.Clone(rec.Payload)
	return &rec, nil
}

// Write implements Store.
func (s *MemoryStore) Write(_ context.Context, p WriteParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.rows[p.ID]
	if !ok {
		rec = Record{ID: p.ID, CreatedAt: now}
	}
	rec.UserID = p.UserID
	rec.Payload = bytes.Clone(p.Payload)
	rec.IPAddress = p.IPAddress
	rec.UserAgent = p.UserAgent
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(p.TTL)
	s.rows[p.ID] = rec
	return nil
}

// Destroy implements Store.
func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.rows, id)
	s.mu.Unlock()
	return nil
}

// GC implements Store. Notification runs without the lock held. Each row is
// re-checked right before its notification, so a row refreshed by an
// earlier notification or a concurrent Write is skipped; a refresh landing
// after the notification keeps the row but its expiry was already reported.
func (s *MemoryStore) GC(ctx context.Context, now time.Time, notify ExpiredFunc) (int64, error) {
	s.mu.RLock()
	var expired []string
	for id, rec := range s.rows {
		if rec.ExpiresAt.Before(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()
	slices.Sort(expired)

	if notify != nil {
		for _, id := range expired {
			if s.expired(id, now) {
				notify(ctx, id)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range expired {
		if rec, ok := s.rows[id]; ok && rec.ExpiresAt.Before(now) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) expired(id string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[id]
	return ok && rec.ExpiresAt.Before(now)
}

// Stats implements AdminStore.
func (s *MemoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, rec := range s.rows {
		st.Total++
		if rec.Active(now) {
			st.Active++
			if rec.LoggedIn() {
				st.LoggedIn++
			}
		} else {
			st.Expired++
		}
	}
	return st, nil
}

// ListActive implements AdminStore.
func (s *MemoryStore) ListActive(_ context.Context, now time.Time, f ListFilter) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.rows))
	for _, rec := range s.rows {
		if !rec.Active(now) {
			continue
		}
		if f.UserID != 0 && rec.UserID != f.UserID {
			continue
		}
		rec.Payload = bytes.Clone(rec.Payload)
		out = append(out, rec)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// DeleteAll implements AdminStore.
func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.rows))
	clear(s.rows)
	return n, nil
}
