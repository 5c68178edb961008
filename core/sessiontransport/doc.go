// Package sessiontransport carries the session identifier over HTTP.
//
// Cookie reads and writes the identifier cookie (HttpOnly, SameSite=Lax,
// Secure by default, Max-Age equal to the session TTL). When secrets are
// configured the value is HMAC-signed; several comma-separated secrets allow
// key rotation.
//
// Middleware wraps a handler with one session lifecycle pass:
//
//	cookie, err := sessiontransport.NewCookie(cfg)
//	if err != nil {
//		return err
//	}
//	mux.Handle("/", sessiontransport.Middleware(mgr, cookie, sessiontransport.WithLogger(log))(site))
//
// Handlers obtain the request's *session.State with session.FromContext. A
// login handler calls Manager.BindUser and a logout handler Manager.Destroy;
// the middleware then sends the rotated identifier or expires the cookie.
package sessiontransport
