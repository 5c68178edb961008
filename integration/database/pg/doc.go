// Package pg manages PostgreSQL connectivity for the session service.
//
// Connect builds a pgx connection pool from Config and verifies it with a
// ping, retrying with a growing interval on failure. Healthcheck returns a
// check suitable for readiness endpoints.
//
// Migrate and MigrateFS apply goose migrations through the pool, from a
// directory on disk or from an embedded filesystem:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, pgstore.Migrations, "migrations", cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// WithTx and TxFromContext carry a pgx.Tx through the context so that store
// calls join the caller's transaction.
//
// IsNotFoundError, IsDuplicateKeyError, IsForeignKeyViolationError and
// IsTxClosedError classify driver errors.
package pg
