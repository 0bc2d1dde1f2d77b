// Package admin implements the Admin DB Manager (C4): the exists / drop /
// create / terminate-sessions operations run against a maintenance
// connection to "postgres", and the restore-time state machine that decides
// which of them to run for a given target database.
//
// Grounded on the CreateDatabase/DropDatabase/DatabaseExists shape of the
// teacher's internal/database/postgresql.go and the terminateConnections/
// dropDatabaseIfExists/ensureDatabaseExists flow of internal/restore/engine.go,
// rewired onto pgx/v5 and the typed ConnectionURI from internal/config.
package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dbbackup/internal/config"
	"dbbackup/internal/errs"
	"dbbackup/internal/logger"
	"dbbackup/internal/security"
)

// ProtectedDatabase can never be dropped, regardless of restore options.
const ProtectedDatabase = "postgres"

// connectLimiter gates repeated maintenance-connection attempts against the
// same host: a flapping server gets exponential backoff instead of a tight
// retry loop across the several Connect calls one run can make (discovery,
// per-database restore/sync).
var connectLimiter = security.NewRateLimiter(5, nil)

// Manager holds a pool to a server's maintenance database.
type Manager struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// Connect opens a pool against the maintenance URI (database="postgres")
// derived from base.
func Connect(ctx context.Context, base *config.ConnectionURI, log logger.Logger) (*Manager, error) {
	maint := base.MaintenanceURI()
	host := fmt.Sprintf("%s:%d", maint.Host, maint.Port)

	if err := connectLimiter.CheckAndWait(host); err != nil {
		return nil, &errs.AdminDenied{Database: maint.Database, Action: "connect", Cause: err}
	}

	pool, err := pgxpool.New(ctx, maint.String())
	if err != nil {
		connectLimiter.RecordFailure(host)
		return nil, &errs.AdminDenied{Database: maint.Database, Action: "connect", Cause: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		connectLimiter.RecordFailure(host)
		return nil, &errs.AdminDenied{Database: maint.Database, Action: "ping", Cause: err}
	}
	connectLimiter.RecordSuccess(host)
	return &Manager{pool: pool, log: log}, nil
}

// Close releases the maintenance pool.
func (m *Manager) Close() {
	m.pool.Close()
}

// Exists reports whether a database is present in pg_database.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := m.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, &errs.AdminDenied{Database: name, Action: "exists", Cause: err}
	}
	return exists, nil
}

// TerminateSessions force-disconnects every other backend connected to name,
// a prerequisite for a clean DROP DATABASE.
func (m *Manager) TerminateSessions(ctx context.Context, name string) error {
	_, err := m.pool.Exec(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
	if err != nil {
		return &errs.AdminDenied{Database: name, Action: "terminate_sessions", Cause: err}
	}
	return nil
}

// Drop drops name. Refuses unconditionally if name is the protected database.
func (m *Manager) Drop(ctx context.Context, name string) error {
	if name == ProtectedDatabase {
		return &errs.ProtectedDB{Database: name}
	}
	ident, err := quoteIdentifier(name)
	if err != nil {
		return err
	}
	if _, err := m.pool.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", ident)); err != nil {
		return &errs.AdminDenied{Database: name, Action: "drop", Cause: err}
	}
	return nil
}

// Create creates name with default encoding/owner.
func (m *Manager) Create(ctx context.Context, name string) error {
	ident, err := quoteIdentifier(name)
	if err != nil {
		return err
	}
	if _, err := m.pool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", ident)); err != nil {
		return &errs.AdminDenied{Database: name, Action: "create", Cause: err}
	}
	return nil
}

// quoteIdentifier validates name against the DatabaseIdentifier pattern
// before interpolating it into DDL — CREATE/DROP DATABASE cannot be
// parameterized, so this validation is the only guard against injection
// (P8: identifiers are checked before any child process or statement runs).
func quoteIdentifier(name string) (string, error) {
	if !config.ValidIdentifier(name) {
		return "", &errs.InvalidIdentifier{Value: name}
	}
	return `"` + name + `"`, nil
}

// Prepare runs the restore-time state machine from §4.4 against target,
// bringing it to a state where schema/data can be applied. It returns only
// an error; whether the database was dropped or created is not reported.
func (m *Manager) Prepare(ctx context.Context, target string, opts config.RestoreOptions) error {
	exists, err := m.Exists(ctx, target)
	if err != nil {
		return err
	}

	switch {
	case exists && opts.DropIfExists:
		if target == ProtectedDatabase {
			return &errs.ProtectedDB{Database: target}
		}
		if err := m.TerminateSessions(ctx, target); err != nil {
			return err
		}
		if err := m.Drop(ctx, target); err != nil {
			return err
		}
		if err := m.Create(ctx, target); err != nil {
			return err
		}
		if m.log != nil {
			m.log.Info("recreated target database", "database", target)
		}
		return nil

	case exists && !opts.DropIfExists:
		if m.log != nil {
			m.log.Info("reusing existing target database", "database", target)
		}
		return nil

	case !exists && opts.CreateIfAbsent:
		if err := m.Create(ctx, target); err != nil {
			return err
		}
		if m.log != nil {
			m.log.Info("created target database", "database", target)
		}
		return nil

	default: // !exists && !opts.CreateIfAbsent
		return &errs.DBMissing{Database: target}
	}
}
