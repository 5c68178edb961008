package pgstore

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallpaperhub/sessions/core/session"
	"github.com/wallpaperhub/sessions/integration/database/pg"
)

// Migrations holds the goose migrations creating the sessions table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations that holds the SQL files.
const MigrationsDir = "migrations"

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) error {
	return pg.MigrateFS(ctx, pool, Migrations, MigrationsDir, table, log)
}

// DB is the subset of pgx used by the store. *pgxpool.Pool and pgx.Tx
// satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists sessions in the PostgreSQL sessions table.
// Every call joins the transaction attached to ctx with pg.WithTx, if any.
type Store struct {
	db          DB
	now         func() time.Time
	gcBatchSize int
}

var _ session.AdminStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithClock overrides the clock used for created_at, updated_at and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGCBatchSize limits how many expired ids one GC round notifies and
// deletes. Zero sweeps everything in a single round.
func WithGCBatchSize(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.gcBatchSize = n
		}
	}
}

// New creates a store on top of db.
func New(db DB, opts ...Option) *Store {
	s := &Store{
		db:          db,
		now:         time.Now,
		gcBatchSize: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) conn(ctx context.Context) DB {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

const selectPayload = `
SELECT payload FROM sessions
WHERE session_id = $1 AND expires_at > $2`

// Read returns the payload of a non-expired session, or nil when there is none.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := s.conn(ctx).QueryRow(ctx, selectPayload, id, s.now()).Scan(&payload)
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, nil
}

const recordColumns = `session_id, COALESCE(user_id, 0), payload, ip_address, user_agent, created_at, updated_at, expires_at`

const selectRecord = `
SELECT ` + recordColumns + ` FROM sessions
WHERE session_id = $1 AND expires_at > $2`

// Get returns the full non-expired row, or session.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*session.Record, error) {
	rec, err := scanRecord(s.conn(ctx).QueryRow(ctx, selectRecord, id, s.now()))
	if pg.IsNotFoundError(err) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &rec, nil
}

const upsertSession = `
INSERT INTO sessions (session_id, user_id, payload, ip_address, user_agent, created_at, updated_at, expires_at)
VALUES ($1, NULLIF($2::BIGINT, 0), $3, $4, $5, $6, $6, $7)
ON CONFLICT (session_id) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    payload = EXCLUDED.payload,
    ip_address = EXCLUDED.ip_address,
    user_agent = EXCLUDED.user_agent,
    updated_at = EXCLUDED.updated_at,
    expires_at = EXCLUDED.expires_at`

// Write inserts the session or overwrites every mutable column of the
// existing row, keeping created_at.
func (s *Store) Write(ctx context.Context, p session.WriteParams) error {
	now := s.now()
	payload := p.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.conn(ctx).Exec(ctx, upsertSession,
		p.ID, p.UserID, payload, truncate(p.IPAddress, 45), p.UserAgent, now, now.Add(p.TTL),
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// Destroy deletes the session. A missing row is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if _, err := s.conn(ctx).Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, id); err != nil {
		return storeErr(err)
	}
	return nil
}

const selectExpired = `
SELECT session_id FROM sessions
WHERE expires_at < $1 AND session_id > $2
ORDER BY session_id
LIMIT NULLIF($3::INT, 0)`

const deleteExpired = `
DELETE FROM sessions
WHERE session_id = ANY($1) AND expires_at < $2`

// GC deletes sessions that expired before now, one batch at a time. The ids
// of a batch are read without locking, notify runs for each of them while
// the rows still exist, then the rows that are still expired are deleted.
// No lock or transaction is held while notify runs, so a slow audit sink
// never blocks writers. A row refreshed after its notification is kept;
// its expiry was still reported. Concurrent sweeps may notify an id twice.
func (s *Store) GC(ctx context.Context, now time.Time, notify session.ExpiredFunc) (int64, error) {
	db := s.conn(ctx)
	var total int64
	var after string
	for {
		rows, err := db.Query(ctx, selectExpired, now, after, s.gcBatchSize)
		if err != nil {
			return total, storeErr(err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return total, storeErr(err)
		}
		if len(ids) == 0 {
			return total, nil
		}
		after = ids[len(ids)-1]

		if notify != nil {
			for _, id := range ids {
				notify(ctx, id)
			}
		}

		tag, err := db.Exec(ctx, deleteExpired, ids, now)
		if err != nil {
			return total, storeErr(err)
		}
		total += tag.RowsAffected()

		if s.gcBatchSize == 0 || len(ids) < s.gcBatchSize {
			return total, nil
		}
	}
}

const selectStats = `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE expires_at > $1),
    COUNT(*) FILTER (WHERE expires_at <= $1),
    COUNT(*) FILTER (WHERE expires_at > $1 AND user_id IS NOT NULL)
FROM sessions`

// Stats counts sessions relative to now.
func (s *Store) Stats(ctx context.Context, now time.Time) (session.Stats, error) {
	var st session.Stats
	err := s.conn(ctx).QueryRow(ctx, selectStats, now).Scan(&st.Total, &st.Active, &st.Expired, &st.LoggedIn)
	if err != nil {
		return session.Stats{}, storeErr(err)
	}
	return st, nil
}

const selectActive = `
SELECT ` + recordColumns + ` FROM sessions
WHERE expires_at > $1 AND ($2::BIGINT = 0 OR user_id = $2)
ORDER BY updated_at DESC, session_id
LIMIT NULLIF($3::INT, 0)`

// ListActive returns non-expired sessions, most recently updated first.
func (s *Store) ListActive(ctx context.Context, now time.Time, f session.ListFilter) ([]session.Record, error) {
	rows, err := s.conn(ctx).Query(ctx, selectActive, now, f.UserID, f.Limit)
	if err != nil {
		return nil, storeErr(err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (session.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return recs, nil
}

// DeleteAll removes every session.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, storeErr(err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (session.Record, error) {
	var r session.Record
	err := row.Scan(&r.ID, &r.UserID, &r.Payload, &r.IPAddress, &r.UserAgent, &r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt)
	return r, err
}

func storeErr(err error) error {
	if errors.Is(err, session.ErrStoreUnavailable) {
		return err
	}
	return errors.Join(session.ErrStoreUnavailable, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
