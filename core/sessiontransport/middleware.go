package sessiontransport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wallpaperhub/sessions/core/logger"
	"github.com/wallpaperhub/sessions/core/session"
	"github.com/wallpaperhub/sessions/pkg/clientip"
)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middleware)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(m *middleware) {
		if l != nil {
			m.log = l
		}
	}
}

// WithErrorHandler sets the handler used when a session cannot be started.
// The default responds with 500.
func WithErrorHandler(fn func(w http.ResponseWriter, r *http.Request, err error)) MiddlewareOption {
	return func(m *middleware) {
		if fn != nil {
			m.onError = fn
		}
	}
}

type middleware struct {
	mgr     *session.Manager
	cookie  *Cookie
	log     *slog.Logger
	onError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware runs one session lifecycle pass per request: the session is
// loaded from the cookie, checked for client drift, attached to the request
// context, and written back after the handler returns. The cookie is sent
// just before the response headers, so a rotation or destroy performed by the
// handler is reflected in it.
func Middleware(mgr *session.Manager, cookie *Cookie, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{
		mgr:    mgr,
		cookie: cookie,
		log:    logger.Discard(),
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("session_transport"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.serve(next, w, r)
		})
	}
}

func (m *middleware) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := session.ClientMeta{IP: clientip.GetIP(r), UserAgent: r.UserAgent()}

	id, err := m.cookie.ReadID(r)
	if errors.Is(err, ErrInvalidToken) {
		m.log.WarnContext(ctx, "rejected session cookie", logger.ClientIP(client.IP), logger.Error(err))
	}

	st := session.NewState(id, client)
	if err := m.mgr.Init(ctx, st); err != nil {
		m.log.ErrorContext(ctx, "session init failed", logger.Error(err))
		m.onError(w, r, err)
		return
	}

	if _, err := m.mgr.ValidateDrift(ctx, st); errors.Is(err, session.ErrDrift) {
		st = session.NewState("", client)
		if err := m.mgr.Init(ctx, st); err != nil {
			m.log.ErrorContext(ctx, "session init failed", logger.Error(err))
			m.onError(w, r, err)
			return
		}
	}
	m.mgr.Touch(st)

	sw := &stateWriter{ResponseWriter: w, emit: func(w http.ResponseWriter) { m.emitCookie(w, st) }}
	next.ServeHTTP(sw, r.WithContext(session.WithState(ctx, st)))

	if st.Status() != session.StatusDestroyed {
		// Failures are logged by the manager; the session stays ephemeral.
		_ = m.mgr.Write(ctx, st)
	}
	sw.flushCookie()
}

func (m *middleware) emitCookie(w http.ResponseWriter, st *session.State) {
	if st.Status() == session.StatusDestroyed {
		m.cookie.Expire(w)
		return
	}
	m.cookie.Set(w, st.ID(), m.mgr.Config().TTL)
}

// stateWriter sends the session cookie right before the first header write.
type stateWriter struct {
	http.ResponseWriter
	emit    func(http.ResponseWriter)
	emitted bool
}

func (w *stateWriter) flushCookie() {
	if !w.emitted {
		w.emitted = true
		w.emit(w.ResponseWriter)
	}
}

func (w *stateWriter) WriteHeader(code int) {
	w.flushCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *stateWriter) Write(b []byte) (int, error) {
	w.flushCookie()
	return w.ResponseWriter.Write(b)
}

func (w *stateWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
