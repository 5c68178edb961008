// Package server runs an http.Handler until its context is canceled and
// then shuts it down gracefully.
//
//	srv, err := server.New(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx, handler)
package server
