// Package sessionaudit forwards session end-of-life events to the login
// history consumer through a Redis stream.
package sessionaudit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wallpaperhub/sessions/core/session"
)

// ErrPublish is returned when an event could not be appended to the stream.
var ErrPublish = errors.New("failed to publish session audit event")

// Stream field names.
const (
	FieldEventID    = "event_id"
	FieldEvent      = "event"
	FieldSessionID  = "session_id"
	FieldUserID     = "user_id"
	FieldOccurredAt = "occurred_at"
)

// Publisher is the subset of the go-redis client used by RedisStream.
type Publisher interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Config configures the stream sink.
type Config struct {
	Stream string `env:"REDIS_AUDIT_STREAM" envDefault:"wallpaper:session_events"`
	MaxLen int64  `env:"REDIS_AUDIT_STREAM_MAXLEN" envDefault:"100000"`
}

// RedisStream implements session.Auditor by appending one entry per event.
type RedisStream struct {
	client Publisher
	cfg    Config
	now    func() time.Time
	newID  func() string
}

var _ session.Auditor = (*RedisStream)(nil)

// Option configures RedisStream.
type Option func(*RedisStream)

// WithClock overrides the occurred_at clock.
func WithClock(now func() time.Time) Option {
	return func(s *RedisStream) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEventIDs overrides event id generation.
func WithEventIDs(fn func() string) Option {
	return func(s *RedisStream) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewRedisStream creates the sink. An empty cfg.Stream falls back to
// "wallpaper:session_events".
func NewRedisStream(client Publisher, cfg Config, opts ...Option) *RedisStream {
	if cfg.Stream == "" {
		cfg.Stream = "wallpaper:session_events"
	}
	s := &RedisStream{
		client: client,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyExpired publishes a session_expired event.
func (s *RedisStream) NotifyExpired(ctx context.Context, sessionID string) error {
	return s.publish(ctx, session.EventExpired, sessionID, 0)
}

// NotifyLoggedOut publishes a session_logged_out event.
func (s *RedisStream) NotifyLoggedOut(ctx context.Context, sessionID string, userID int64) error {
	return s.publish(ctx, session.EventLoggedOut, sessionID, userID)
}

func (s *RedisStream) publish(ctx context.Context, event, sessionID string, userID int64) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		MaxLen: s.cfg.MaxLen,
		Approx: s.cfg.MaxLen > 0,
		Values: []any{
			FieldEventID, s.newID(),
			FieldEvent, event,
			FieldSessionID, sessionID,
			FieldUserID, strconv.FormatInt(userID, 10),
			FieldOccurredAt, s.now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return errors.Join(ErrPublish, err)
	}
	return nil
}
