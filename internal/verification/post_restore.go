// Post-restore verification (C11): a best-effort sanity pass run after each
// database is restored. It never fails the pipeline — it only gives the
// operator feedback via the logger (§4.10, §7 VerificationWarning).
package verification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"dbbackup/internal/errs"
	"dbbackup/internal/logger"
)

// wellKnownTables is probed opportunistically in addition to the count of
// all public-schema tables; their absence is routine, not a warning sign by
// itself, but a non-empty restore that also has none of them logs a hint.
var wellKnownTables = []string{"users", "migrations", "schema_migrations"}

// VerifyRestore lists public-schema user tables in database, logs the count, and
// probes the well-known table list. Every problem surfaces as a logged
// VerificationWarning; nothing here returns an error to the caller.
func VerifyRestore(ctx context.Context, pool *pgxpool.Pool, database string, log logger.Logger) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM pg_tables WHERE schemaname = 'public'`).Scan(&count)
	if err != nil {
		if log != nil {
			log.Warn((&errs.VerificationWarning{Database: database, Detail: "failed to list tables"}).Error(), "error", err)
		}
		return
	}

	if log != nil {
		log.Info("post-restore verification", "database", database, "public_tables", count)
	}

	if count == 0 {
		if log != nil {
			log.Warn((&errs.VerificationWarning{Database: database, Detail: "restored database has no public-schema tables"}).Error())
		}
		return
	}

	found := 0
	for _, table := range wellKnownTables {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)`, table).Scan(&exists)
		if err == nil && exists {
			found++
			var rows int64
			if pool.QueryRow(ctx, "SELECT count(*) FROM \""+table+"\"").Scan(&rows) == nil && log != nil {
				log.Debug("verified well-known table", "database", database, "table", table, "rows", rows)
			}
		}
	}
	if found == 0 && log != nil {
		log.Info("none of the well-known tables are present", "database", database, "tables", wellKnownTables)
	}
}
