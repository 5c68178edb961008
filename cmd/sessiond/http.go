package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wallpaperhub/sessions/core/health"
	"github.com/wallpaperhub/sessions/core/logger"
	"github.com/wallpaperhub/sessions/core/session"
	"github.com/wallpaperhub/sessions/core/sessionadmin"
	"github.com/wallpaperhub/sessions/core/sessiontransport"
)

const requestIDHeader = "X-Request-ID"

func requestIDFromContext(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}

// requestID accepts a caller supplied X-Request-ID or assigns a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.StatusCode(ww.Status()),
				logger.Elapsed(start),
			)
		})
	}
}

// newRouter assembles the service routes.
func newRouter(d *deps, cookie *sessiontransport.Cookie) http.Handler {
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := chi.NewRouter()
	r.Use(requestID, middleware.Recoverer, accessLog(d.log))

	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness(d.log, d.checks...))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
	r.Mount("/admin/sessions", sessionadmin.NewHandler(d.admin, d.log).Routes())

	r.Route("/session", func(r chi.Router) {
		r.Use(sessiontransport.Middleware(d.manager, cookie, sessiontransport.WithLogger(d.log)))
		r.Get("/", currentSession)
		r.Delete("/", endSession(d.manager, d.log))
	})
	return r
}

// currentSession reports the caller's session as the service sees it.
func currentSession(w http.ResponseWriter, r *http.Request) {
	st, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    logger.MaskSessionID(st.ID()),
		"user_id":       st.UserID(),
		"authenticated": st.IsAuthenticated(),
		"ephemeral":     st.Ephemeral(),
	})
}

// endSession logs the caller out.
func endSession(mgr *session.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := session.FromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if err := mgr.Destroy(r.Context(), st); err != nil {
			log.ErrorContext(r.Context(), "logout failed", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
