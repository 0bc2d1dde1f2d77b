// Package sync implements the Sync Pipeline (C9): a direct source-to-target
// replication path that never touches local archive storage. Per database,
// schema and data are dumped to a scoped temp directory, the target is
// forced through drop+recreate, and the dump is replayed with pg_restore's
// custom-format tooling.
//
// Grounded on internal/backup's dump-command shape and internal/restore's
// admin-state-machine usage, recombined for the no-archive direct path
// spec.md §4.9 describes.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"dbbackup/internal/admin"
	"dbbackup/internal/config"
	"dbbackup/internal/logger"
	"dbbackup/internal/sequences"
	"dbbackup/internal/toolrunner"
	"dbbackup/internal/verification"
)

// Options configures one sync run.
type Options struct {
	Source    *config.ConnectionURI
	Target    *config.ConnectionURI
	Databases []string // identity-mapped source==target names
	TempRoot  string
	// Jobs sizes pg_restore's own --jobs flag for the data-only replay.
	// Intra-database parallelism only; databases still sync strictly in
	// sequence (§5).
	Jobs int
}

// DatabaseResult reports the outcome for one database.
type DatabaseResult struct {
	Database string
	Err      error
}

// Result summarizes a completed run.
type Result struct {
	Databases []DatabaseResult
}

// Engine runs the sync pipeline.
type Engine struct {
	log    logger.Logger
	runner *toolrunner.Runner
}

// New creates a sync Engine.
func New(log logger.Logger) *Engine {
	return &Engine{log: log, runner: toolrunner.New(log)}
}

// Run executes one full sync. An empty or missing database list is a
// successful no-op with a warning (§4.9), not an error.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	op := e.log.StartOperation("sync")

	if len(opts.Databases) == 0 {
		e.log.Warn("sync requested with an empty database list; nothing to do")
		op.Complete("no databases to sync")
		return &Result{}, nil
	}

	mgr, err := admin.Connect(ctx, opts.Target, e.log)
	if err != nil {
		op.Fail("failed to connect to maintenance database", "error", err)
		return nil, err
	}
	defer mgr.Close()

	forcedOpts := config.RestoreOptions{DropIfExists: true, CreateIfAbsent: true}

	result := &Result{}
	for _, db := range opts.Databases {
		res := DatabaseResult{Database: db}
		if err := e.syncOne(ctx, mgr, opts, forcedOpts, db); err != nil {
			res.Err = err
			op.Update("database sync failed", "database", db, "error", err)
		} else {
			op.Update("database synced", "database", db)
		}
		result.Databases = append(result.Databases, res)
	}

	op.Complete("sync finished", "databases", len(result.Databases))
	return result, nil
}

func (e *Engine) syncOne(ctx context.Context, mgr *admin.Manager, opts Options, forcedOpts config.RestoreOptions, db string) error {
	if !config.ValidIdentifier(db) {
		return fmt.Errorf("invalid database identifier: %q", db)
	}

	scratch, err := os.MkdirTemp(opts.TempRoot, "sync-"+db+"-*")
	if err != nil {
		return fmt.Errorf("create scoped temp dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	sourceURI := opts.Source.WithDatabase(db)
	schemaFile := filepath.Join(scratch, db+"_schema.sql")
	dataFile := filepath.Join(scratch, db+".dump")

	if _, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "pg_dump",
		Args:    []string{"--schema-only", "-f", schemaFile, "-d", sourceURI.String()},
		Timeout: toolrunner.DumpTimeout,
	}); err != nil {
		return fmt.Errorf("pg_dump schema: %w", err)
	}

	if _, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "pg_dump",
		Args:    []string{"--data-only", "--format=custom", "-f", dataFile, "-d", sourceURI.String()},
		Timeout: toolrunner.DumpTimeout,
	}); err != nil {
		return fmt.Errorf("pg_dump data: %w", err)
	}

	if err := mgr.Prepare(ctx, db, forcedOpts); err != nil {
		return err
	}

	targetURI := opts.Target.WithDatabase(db)
	if _, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "psql",
		Args:    []string{"-X", "-q", "-v", "ON_ERROR_STOP=1", "-d", targetURI.String(), "-f", schemaFile},
		Timeout: toolrunner.DumpTimeout,
	}); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	restoreArgs := []string{"--data-only", "--disable-triggers", "--no-owner", "--no-acl", "--exit-on-error"}
	if opts.Jobs > 1 {
		restoreArgs = append(restoreArgs, "--jobs", strconv.Itoa(opts.Jobs))
	}
	restoreArgs = append(restoreArgs, "-d", targetURI.String(), dataFile)
	if _, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "pg_restore",
		Args:    restoreArgs,
		Timeout: toolrunner.DataTimeout,
	}); err != nil {
		return fmt.Errorf("pg_restore data: %w", err)
	}

	pool, err := pgxpool.New(ctx, targetURI.String())
	if err != nil {
		return fmt.Errorf("connect to target database %s: %w", db, err)
	}
	defer pool.Close()

	verification.VerifyRestore(ctx, pool, db, e.log)

	if _, err := sequences.Repair(ctx, pool, db, e.log); err != nil {
		return err
	}
	return nil
}
