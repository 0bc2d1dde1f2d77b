// Package backup implements the Backup Pipeline (C7): discover -> stage ->
// dump -> seal -> optional upload -> cleanup, run sequentially across the
// selected databases (§5: no intentional cross-database parallelism).
//
// Grounded on internal/backup/engine.go's staging-directory and dump-command
// shape from the teacher, narrowed to the schema/data pg_dump pair this
// format specifies and stripped of the teacher's cluster-parallel dispatch.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dbbackup/internal/archive"
	"dbbackup/internal/checks"
	"dbbackup/internal/cloud"
	"dbbackup/internal/config"
	"dbbackup/internal/logger"
	"dbbackup/internal/metadata"
	"dbbackup/internal/security"
	"dbbackup/internal/toolrunner"
)

// Options configures one backup run.
type Options struct {
	Source       *config.ConnectionURI
	Databases    []string // explicit selection; empty means auto-discover
	LocalDir     string
	TempRoot     string
	S3           *config.S3Location

	// Operational hardening, all optional.
	AuditUser     string // empty disables nothing; audit logger no-ops when !AuditEnabled
	AuditEnabled  bool
	RetentionDays int
	MinBackups    int
}

// Result summarizes a completed run.
type Result struct {
	ArchivePath string
	Databases   []string
	UploadedTo  string
	RawBytes    int64 // sum of uncompressed schema+data dump sizes, for compression-ratio reporting
	ArchiveBytes int64
}

// Engine runs the backup pipeline.
type Engine struct {
	log    logger.Logger
	runner *toolrunner.Runner
}

// New creates a backup Engine.
func New(log logger.Logger) *Engine {
	return &Engine{log: log, runner: toolrunner.New(log)}
}

// Run executes one full backup: discover, stage, dump, seal, upload, cleanup.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	op := e.log.StartOperation("backup")
	audit := security.NewAuditLogger(e.log, opts.AuditEnabled)
	auditUser := opts.AuditUser
	if auditUser == "" {
		auditUser = security.GetCurrentUser()
	}
	audit.LogBackupStart(auditUser, opts.Source.Redacted(), "full")

	databases := opts.Databases
	if len(databases) == 0 {
		discovered, err := e.discover(ctx, opts.Source)
		if err != nil {
			op.Fail("discovery failed", "error", err)
			audit.LogBackupFailed(auditUser, opts.Source.Redacted(), err)
			return nil, fmt.Errorf("discover databases: %w", err)
		}
		databases = discovered
	}
	if len(databases) == 0 {
		op.Complete("no databases selected")
		return nil, fmt.Errorf("no databases to back up")
	}

	localDir, err := security.ValidateBackupPath(opts.LocalDir)
	if err != nil {
		op.Fail("invalid local backup directory", "error", err)
		audit.LogBackupFailed(auditUser, opts.Source.Redacted(), err)
		return nil, fmt.Errorf("validate local backup dir: %w", err)
	}
	opts.LocalDir = localDir

	// Informational only: logs warnings on tight file-descriptor/memory
	// limits but never blocks the run.
	if err := security.NewResourceChecker(e.log).ValidateResourcesForBackup(0); err != nil {
		e.log.Warn("resource check failed", "error", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	stageRoot := opts.TempRoot
	if stageRoot == "" {
		stageRoot = os.TempDir()
	}
	stageDir := filepath.Join(stageRoot, timestamp)
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		op.Fail("failed to create staging directory", "error", err)
		audit.LogBackupFailed(auditUser, opts.Source.Redacted(), err)
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	meta := &metadata.ArchiveMetadata{
		Timestamp:  time.Now(),
		SourceHost: opts.Source.Host,
		SourcePort: opts.Source.Port,
	}

	// Dumps run strictly sequentially: a failure aborts the whole run so no
	// partial archive is ever sealed.
	for _, db := range databases {
		if !config.ValidIdentifier(db) {
			op.Fail("invalid database identifier", "database", db)
			return nil, fmt.Errorf("invalid database identifier: %q", db)
		}
		entry, err := e.dumpOne(ctx, opts.Source, db, stageDir)
		if err != nil {
			op.Fail("dump failed", "database", db, "error", err)
			audit.LogBackupFailed(auditUser, db, err)
			return nil, fmt.Errorf("dump %s: %w", db, err)
		}
		meta.Databases = append(meta.Databases, *entry)
		op.Update("dumped database", "database", db)
	}

	archiveName := timestamp + ".tar.gz"
	archivePath := filepath.Join(opts.LocalDir, archiveName)
	if err := os.MkdirAll(opts.LocalDir, 0755); err != nil {
		op.Fail("failed to create local backup dir", "error", err)
		audit.LogBackupFailed(auditUser, opts.Source.Redacted(), err)
		return nil, fmt.Errorf("create local backup dir: %w", err)
	}
	if spaceCheck := checks.CheckDiskSpaceCached(opts.LocalDir); spaceCheck.Critical {
		e.log.Warn("local backup directory is critically low on disk space", "detail", checks.FormatDiskSpaceMessage(spaceCheck))
	}
	if err := archive.Pack(stageDir, archivePath); err != nil {
		op.Fail("failed to seal archive", "error", err)
		audit.LogBackupFailed(auditUser, opts.Source.Redacted(), err)
		return nil, fmt.Errorf("seal archive: %w", err)
	}

	meta.ArchiveFile = archivePath
	meta.DurationSeconds = time.Since(start).Seconds()
	if info, err := os.Stat(archivePath); err == nil {
		meta.SizeBytes = info.Size()
	}
	if sum, err := metadata.CalculateSHA256(archivePath); err == nil {
		meta.SHA256 = sum
		if err := security.SaveChecksum(archivePath, sum); err != nil {
			e.log.Warn("failed to write checksum sidecar", "archive", archivePath, "error", err)
		}
	}

	var rawBytes int64
	for _, entry := range meta.Databases {
		rawBytes += entry.SchemaBytes + entry.DataBytes
	}
	result := &Result{ArchivePath: archivePath, Databases: databases, RawBytes: rawBytes, ArchiveBytes: meta.SizeBytes}

	// A failed upload after a successfully sealed archive is a warning, not
	// a pipeline failure (§4.7): the archive is already safe on local disk.
	if opts.S3.Enabled() {
		uploadedTo, err := e.upload(ctx, opts.S3, archivePath, archiveName)
		if err != nil {
			e.log.Warn("archive sealed locally but upload failed", "archive", archivePath, "error", err)
		} else {
			meta.UploadedTo = uploadedTo
			result.UploadedTo = uploadedTo
		}
	}

	if err := meta.Save(); err != nil {
		e.log.Warn("failed to write archive metadata sidecar", "archive", archivePath, "error", err)
	}

	if opts.RetentionDays > 0 {
		retention := security.NewRetentionPolicy(opts.RetentionDays, opts.MinBackups, e.log)
		if deleted, freed, err := retention.CleanupOldBackups(opts.LocalDir); err != nil {
			e.log.Warn("retention cleanup failed", "error", err)
		} else if deleted > 0 {
			e.log.Info("retention cleanup removed old backups", "deleted", deleted, "freed_bytes", freed)
		}
	}

	audit.LogBackupComplete(auditUser, opts.Source.Redacted(), archivePath, meta.SizeBytes)
	op.Complete("backup finished", "archive", archivePath, "databases", len(databases))
	return result, nil
}

// discover enumerates every non-template, connectable database, excluding
// "postgres" unless it was named explicitly (§4.7).
func (e *Engine) discover(ctx context.Context, source *config.ConnectionURI) ([]string, error) {
	pool, err := pgxpool.New(ctx, source.MaintenanceURI().String())
	if err != nil {
		return nil, fmt.Errorf("connect for discovery: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT datname FROM pg_database
		WHERE datistemplate = false AND datallowconn = true
		ORDER BY datname`)
	if err != nil {
		return nil, fmt.Errorf("query pg_database: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan datname: %w", err)
		}
		if name == "postgres" {
			continue
		}
		// Excluded regardless of datistemplate: a non-flagged database that
		// merely happens to be named "template*" is still not fleet data.
		if strings.HasPrefix(name, "template") {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// dumpOne runs schema-only and data-only pg_dump against db, writing
// <db>_schema.sql and <db>_data.sql under stageDir.
func (e *Engine) dumpOne(ctx context.Context, source *config.ConnectionURI, db, stageDir string) (*metadata.DatabaseEntry, error) {
	uri := source.WithDatabase(db)
	schemaFile := filepath.Join(stageDir, db+"_schema.sql")
	dataFile := filepath.Join(stageDir, db+"_data.sql")

	if _, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "pg_dump",
		Args:    []string{"--schema-only", "-f", schemaFile, "-d", uri.String()},
		Timeout: toolrunner.DumpTimeout,
	}); err != nil {
		return nil, fmt.Errorf("pg_dump schema: %w", err)
	}

	if _, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "pg_dump",
		Args:    []string{"--data-only", "--column-inserts", "-f", dataFile, "-d", uri.String()},
		Timeout: toolrunner.DumpTimeout,
	}); err != nil {
		return nil, fmt.Errorf("pg_dump data: %w", err)
	}

	entry := &metadata.DatabaseEntry{Name: db, SchemaFile: filepath.Base(schemaFile), DataFile: filepath.Base(dataFile)}
	if info, err := os.Stat(schemaFile); err == nil {
		entry.SchemaBytes = info.Size()
	}
	if info, err := os.Stat(dataFile); err == nil {
		entry.DataBytes = info.Size()
	}
	return entry, nil
}

// upload streams archivePath to the configured object store and returns the
// resulting s3:// URI.
func (e *Engine) upload(ctx context.Context, loc *config.S3Location, archivePath, archiveName string) (string, error) {
	client, err := cloud.New(ctx, loc, e.log)
	if err != nil {
		return "", err
	}
	client.Probe(ctx)
	key := cloud.BuildKey(loc.Prefix, archiveName)
	if err := client.Upload(ctx, archivePath, key, 0, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", loc.Bucket, key), nil
}
