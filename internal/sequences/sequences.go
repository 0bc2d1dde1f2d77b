// Package sequences implements the Sequence Repairer (C6): after a restore
// replays INSERT statements with explicit primary keys, each table's
// sequence is left behind the highest inserted value, so the very next
// application INSERT collides. This package resets every public-schema
// sequence to one past its owning column's current maximum.
//
// Directly grounded on original_source/src/utils/sequence_reset.rs (the
// pre-distillation Rust implementation): the same pg_depend/pg_class/
// pg_attribute/pg_namespace join, the same COALESCE(MAX(col),0)+setval(...,
// false) pattern, the same fixed fallback table list, and the same 5-minute
// wall-clock budget.
package sequences

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dbbackup/internal/errs"
	"dbbackup/internal/logger"
)

// Timeout bounds the whole repair pass for one database (§4.6).
const Timeout = 5 * time.Minute

const catalogQuery = `
	SELECT
		seq.relname  AS sequence_name,
		tab.relname  AS table_name,
		attr.attname AS column_name
	FROM pg_class seq
	JOIN pg_depend dep ON dep.objid = seq.oid AND dep.deptype = 'a'
	JOIN pg_class tab ON dep.refobjid = tab.oid
	JOIN pg_attribute attr ON dep.refobjid = attr.attrelid AND dep.refobjsubid = attr.attnum
	JOIN pg_namespace nsp ON seq.relnamespace = nsp.oid
	WHERE seq.relkind = 'S' AND tab.relkind = 'r' AND nsp.nspname = 'public'
	ORDER BY tab.relname, attr.attname`

// fallbackTables is consulted in addition to the catalog query, to catch
// sequences the dependency-graph query might miss (e.g. sequences created
// outside a DEFAULT nextval() ownership link).
var fallbackTables = []struct{ table, column string }{
	{"migrations", "id"},
	{"schema_migrations", "id"},
	{"users", "id"},
	{"permissions", "id"},
	{"groups", "id"},
	{"otp", "id"},
}

// Result summarizes one repair pass.
type Result struct {
	Reset  int
	Errors int
}

// Repair resets every public-schema sequence in database (identified only
// for logging; pool must already be connected to it) to one past its
// owning column's maximum value, then sweeps the fixed fallback list.
// The whole pass is bounded to Timeout; exceeding it is a fatal
// SequenceRepairError naming the database.
func Repair(ctx context.Context, pool *pgxpool.Pool, database string, log logger.Logger) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	res := &Result{}
	done := make(chan error, 1)
	go func() {
		done <- repair(ctx, pool, database, log, res)
	}()

	select {
	case err := <-done:
		if err != nil {
			return res, &errs.SequenceRepairError{Database: database, Err: err}
		}
		return res, nil
	case <-ctx.Done():
		return res, &errs.SequenceRepairError{Database: database, Err: fmt.Errorf("timed out after %s", Timeout)}
	}
}

func repair(ctx context.Context, pool *pgxpool.Pool, database string, log logger.Logger, res *Result) error {
	rows, err := pool.Query(ctx, catalogQuery)
	if err != nil {
		return fmt.Errorf("fetch sequence catalog: %w", err)
	}
	type entry struct{ sequence, table, column string }
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.sequence, &e.table, &e.column); err != nil {
			rows.Close()
			return fmt.Errorf("scan sequence catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sequence catalog: %w", err)
	}

	for _, e := range entries {
		if err := resetOne(ctx, pool, e.sequence, e.table, e.column); err != nil {
			res.Errors++
			if log != nil {
				log.Warn("failed to reset sequence", "sequence", e.sequence, "table", e.table, "error", err)
			}
			continue
		}
		res.Reset++
	}

	for _, t := range fallbackTables {
		seq := fmt.Sprintf("%s_%s_seq", t.table, t.column)
		if err := resetOne(ctx, pool, seq, t.table, t.column); err != nil {
			// The fallback list is best-effort: a missing table or sequence
			// is expected and not counted as an error.
			if log != nil {
				log.Debug("skipping fallback sequence reset", "sequence", seq, "table", t.table, "reason", err)
			}
			continue
		}
		res.Reset++
	}

	return nil
}

// resetOne reads MAX(column) from table, accepting either 4-byte or 8-byte
// integer types, and calls setval(sequence, max+1, false). A missing table
// or sequence is returned as an error for the caller to classify.
func resetOne(ctx context.Context, pool *pgxpool.Pool, sequence, table, column string) error {
	var maxVal int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", quoteIdent(column), quoteIdent(table))
	if err := pool.QueryRow(ctx, query).Scan(&maxVal); err != nil {
		return fmt.Errorf("max(%s) from %s: %w", column, table, err)
	}

	_, err := pool.Exec(ctx, "SELECT setval($1, $2, false)", sequence, maxVal+1)
	if err != nil {
		return fmt.Errorf("setval %s: %w", sequence, err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
