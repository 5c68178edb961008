package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wallpaperhub/sessions/core/logger"
)

// Audit event names.
const (
	EventExpired   = "session_expired"
	EventLoggedOut = "session_logged_out"
)

// Auditor receives session end-of-life notifications for the login history.
// Implementations may fail; the manager logs failures and carries on.
//
// NotifyLoggedOut fires for every Destroy of a live session, including the
// one ValidateDrift performs when drift is enforced. Consumers that need to
// tell the two apart can match the "session client drift" warning with
// enforced=true logged for the same session id just before it.
type Auditor interface {
	NotifyExpired(ctx context.Context, sessionID string) error
	NotifyLoggedOut(ctx context.Context, sessionID string, userID int64) error
}

// NopAuditor discards every notification.
type NopAuditor struct{}

func (NopAuditor) NotifyExpired(context.Context, string) error          { return nil }
func (NopAuditor) NotifyLoggedOut(context.Context, string, int64) error { return nil }

// AuditorFuncs adapts plain functions to Auditor. Nil fields are no-ops.
type AuditorFuncs struct {
	Expired   func(ctx context.Context, sessionID string) error
	LoggedOut func(ctx context.Context, sessionID string, userID int64) error
}

func (f AuditorFuncs) NotifyExpired(ctx context.Context, sessionID string) error {
	if f.Expired == nil {
		return nil
	}
	return f.Expired(ctx, sessionID)
}

func (f AuditorFuncs) NotifyLoggedOut(ctx context.Context, sessionID string, userID int64) error {
	if f.LoggedOut == nil {
		return nil
	}
	return f.LoggedOut(ctx, sessionID, userID)
}

// LogAuditor writes notifications to a structured logger.
type LogAuditor struct {
	Logger *slog.Logger
}

func (a LogAuditor) NotifyExpired(ctx context.Context, sessionID string) error {
	a.log().InfoContext(ctx, "session expired",
		logger.Component("session_audit"),
		logger.Event(EventExpired),
		logger.SessionID(sessionID),
	)
	return nil
}

func (a LogAuditor) NotifyLoggedOut(ctx context.Context, sessionID string, userID int64) error {
	a.log().InfoContext(ctx, "session logged out",
		logger.Component("session_audit"),
		logger.Event(EventLoggedOut),
		logger.SessionID(sessionID),
		logger.UserID(userID),
	)
	return nil
}

func (a LogAuditor) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// MultiAuditor fans a notification out to every auditor and joins their errors.
type MultiAuditor []Auditor

func (m MultiAuditor) NotifyExpired(ctx context.Context, sessionID string) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.NotifyExpired(ctx, sessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiAuditor) NotifyLoggedOut(ctx context.Context, sessionID string, userID int64) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.NotifyLoggedOut(ctx, sessionID, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
