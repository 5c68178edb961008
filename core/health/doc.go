// Package health provides liveness and readiness HTTP handlers.
//
//	r.Get("/health/live", health.Liveness)
//	r.Get("/health/ready", health.Readiness(log,
//		pg.Healthcheck(pool),
//		redis.Healthcheck(client),
//	))
//
// Dependency checks use the func(context.Context) error signature.
package health
