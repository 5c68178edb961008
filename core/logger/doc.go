// Package logger provides structured logging utilities built on log/slog.
//
// New builds a *slog.Logger from functional options:
//
//	log := logger.New(
//		logger.WithProduction("sessiond"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
// Attribute helpers return an empty slog.Attr for zero inputs, so they can
// be passed unconditionally:
//
//	log.ErrorContext(ctx, "session write failed",
//		logger.Component("session"),
//		logger.SessionID(id),
//		logger.Error(err),
//	)
//
// SessionID always masks the identifier; full session identifiers are
// credentials and must not be logged.
//
// Context extractors add request-scoped attributes on every *Context call:
//
//	log := logger.New(logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
//		id, ok := ctx.Value(requestIDKey{}).(string)
//		return logger.RequestID(id), ok
//	}))
package logger
