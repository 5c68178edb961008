package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wallpaperhub/sessions/core/logger"
)

// CheckTimeout bounds every readiness check.
const CheckTimeout = 3 * time.Second

// Readiness runs every check in order and answers 503 on the first failure.
func Readiness(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), CheckTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, "NOT READY")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "READY")
	}
}
