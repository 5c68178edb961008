// Package sessionadmin exposes session introspection and maintenance over
// HTTP for the site's admin dashboard.
package sessionadmin

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wallpaperhub/sessions/core/logger"
	"github.com/wallpaperhub/sessions/core/session"
)

// Cleanup actions accepted by POST /cleanup.
const (
	ActionCleanup  = "cleanup"
	ActionClearAll = "clear_all"
)

// Handler serves the admin endpoints. Authentication and authorization are
// the mounting router's job.
type Handler struct {
	admin *session.Admin
	log   *slog.Logger
}

// NewHandler creates the admin handler.
func NewHandler(admin *session.Admin, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{admin: admin, log: log.With(logger.Component("session_admin_http"))}
}

// Routes returns the admin router:
//
//	GET  /stats
//	GET  /sessions?user_id=
//	POST /cleanup
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.stats)
	r.Get("/sessions", h.sessions)
	r.Post("/cleanup", h.cleanup)
	return r
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.admin.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.json(w, r, http.StatusOK, st)
}

// SessionView is a listed session. The identifier is masked.
type SessionView struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.fail(w, r, ErrInvalidUserID)
			return
		}
		userID = id
	}

	recs, err := h.admin.ListActive(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]SessionView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, SessionView{
			SessionID: logger.MaskSessionID(rec.ID),
			UserID:    rec.UserID,
			IPAddress: rec.IPAddress,
			UserAgent: rec.UserAgent,
			CreatedAt: rec.CreatedAt.UTC(),
			UpdatedAt: rec.UpdatedAt.UTC(),
			ExpiresAt: rec.ExpiresAt.UTC(),
		})
	}
	h.json(w, r, http.StatusOK, out)
}

type cleanupRequest struct {
	Action string `json:"action"`
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	action, err := readAction(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	switch action {
	case ActionCleanup:
		n, err := h.admin.CleanupExpired(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.json(w, r, http.StatusOK, map[string]int64{"cleaned_count": n})
	case ActionClearAll:
		n, err := h.admin.ClearAll(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.json(w, r, http.StatusOK, map[string]int64{"cleared_count": n})
	default:
		h.fail(w, r, ErrInvalidAction)
	}
}

// readAction accepts a JSON body or a form field.
func readAction(r *http.Request) (string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		return r.FormValue("action"), nil
	}

	var req cleanupRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<10)).Decode(&req); err != nil {
		return "", ErrBadRequest.WithMessage("invalid JSON body")
	}
	return req.Action, nil
}

func (h *Handler) json(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WarnContext(r.Context(), "failed to encode response", logger.Error(err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := toHTTPError(err)
	if he.Status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "admin request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
	}
	h.json(w, r, he.Status, he)
}
