package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wallpaperhub/sessions/core/logger"
)

// Admin exposes read-only aggregation over the store plus two bulk
// maintenance operations. The bulk operations act on the store directly
// and bypass rotation.
type Admin struct {
	mgr   *Manager
	store AdminStore
	log   *slog.Logger
}

// NewAdmin creates the admin surface. The store must be the one the manager uses.
func NewAdmin(mgr *Manager, store AdminStore, log *slog.Logger) *Admin {
	if log == nil {
		log = logger.Discard()
	}
	return &Admin{
		mgr:   mgr,
		store: store,
		log:   log.With(logger.Component("session_admin")),
	}
}

// Stats returns total, active, expired and logged-in counts at the current time.
func (a *Admin) Stats(ctx context.Context) (Stats, error) {
	st, err := a.store.Stats(ctx, a.mgr.now())
	if err != nil {
		return Stats{}, wrapStoreErr(err)
	}
	return st, nil
}

// ListActive returns active sessions, most recently updated first.
// userID 0 lists every user.
func (a *Admin) ListActive(ctx context.Context, userID int64) ([]Record, error) {
	recs, err := a.store.ListActive(ctx, a.mgr.now(), ListFilter{
		UserID: userID,
		Limit:  a.mgr.cfg.ListLimit,
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return recs, nil
}

// CleanupExpired runs garbage collection and returns the number of removed sessions.
func (a *Admin) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := a.mgr.GC(ctx)
	if err != nil {
		return n, err
	}
	a.log.InfoContext(ctx, "expired sessions cleaned up",
		logger.Action("cleanup"),
		logger.Count("cleaned_count", n),
	)
	return n, nil
}

// ClearAll deletes every session, including active ones.
func (a *Admin) ClearAll(ctx context.Context) (int64, error) {
	n, err := a.store.DeleteAll(ctx)
	if err != nil {
		a.log.ErrorContext(ctx, "failed to clear sessions", logger.Action("clear_all"), logger.Error(err))
		return 0, wrapStoreErr(err)
	}
	a.log.WarnContext(ctx, "all sessions cleared",
		logger.Action("clear_all"),
		logger.Count("cleared_count", n),
	)
	return n, nil
}

func wrapStoreErr(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return errors.Join(ErrStoreUnavailable, err)
}
