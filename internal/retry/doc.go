// Package retry retries store operations that failed for transient reasons.
//
// It is used where a failure can reasonably clear on its own: opening a
// connection pool, applying migrations against a database that is still
// starting, or a SQLite file that another process holds locked. Ingestion
// phases themselves are never retried; a failed query fails the run.
//
//	executor := retry.NewExecutor(retry.ForDriver(polingest.DriverSQLite), retry.NewExponentialBackoff(3))
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
package retry
