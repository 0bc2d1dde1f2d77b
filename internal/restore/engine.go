// Package restore implements the Restore Pipeline (C8): acquire the
// archive, extract it, enumerate the databases it contains, and replay each
// one sequentially through admin state machine -> schema apply -> data
// apply -> verification -> sequence repair (§5: no cross-database
// parallelism; within one database the step order is fixed).
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dbbackup/internal/admin"
	"dbbackup/internal/archive"
	"dbbackup/internal/checks"
	"dbbackup/internal/cloud"
	"dbbackup/internal/config"
	"dbbackup/internal/errs"
	"dbbackup/internal/logger"
	"dbbackup/internal/remap"
	"dbbackup/internal/security"
	"dbbackup/internal/sequences"
	"dbbackup/internal/toolrunner"
	"dbbackup/internal/verification"
)

// Options configures one restore run.
type Options struct {
	ArchivePath string // local path, or s3:// URI acquired via S3
	Target      *config.ConnectionURI
	Mapping     config.RestoreMapping // source->target; nil means scan+identity
	RestoreOpts config.RestoreOptions
	S3          *config.S3Location
	TempRoot    string
	// Jobs sizes pg_restore's own --jobs flag for custom-format dumps. Zero
	// leaves pg_restore's single-threaded default in place. This is
	// intra-database parallelism only; databases themselves still restore
	// strictly in sequence (§5).
	Jobs int

	AuditUser    string
	AuditEnabled bool
}

// DatabaseResult reports the outcome for one database in the archive.
type DatabaseResult struct {
	Source string
	Target string
	Err    error
}

// Result summarizes a completed run.
type Result struct {
	Databases []DatabaseResult
}

// Engine runs the restore pipeline.
type Engine struct {
	log    logger.Logger
	runner *toolrunner.Runner
}

// New creates a restore Engine.
func New(log logger.Logger) *Engine {
	return &Engine{log: log, runner: toolrunner.New(log)}
}

// Run executes one full restore.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	op := e.log.StartOperation("restore")
	audit := security.NewAuditLogger(e.log, opts.AuditEnabled)
	auditUser := opts.AuditUser
	if auditUser == "" {
		auditUser = security.GetCurrentUser()
	}
	audit.LogRestoreStart(auditUser, opts.Target.Redacted(), opts.ArchivePath)
	start := time.Now()

	stageRoot := opts.TempRoot
	if stageRoot == "" {
		stageRoot = os.TempDir()
	}
	workDir, err := os.MkdirTemp(stageRoot, "restore-*")
	if err != nil {
		op.Fail("failed to create working directory", "error", err)
		return nil, fmt.Errorf("create working dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	localArchive, err := e.acquire(ctx, opts, workDir)
	if err != nil {
		op.Fail("failed to acquire archive", "error", err)
		return nil, fmt.Errorf("acquire archive: %w", err)
	}

	if info, statErr := os.Stat(localArchive); statErr == nil {
		spaceCheck := checks.CheckDiskSpaceForRestore(workDir, info.Size())
		if spaceCheck.Critical {
			op.Fail("insufficient disk space for restore", "path", workDir)
			err := fmt.Errorf("insufficient disk space to extract archive at %s", workDir)
			audit.LogRestoreFailed(auditUser, opts.Target.Redacted(), err)
			return nil, err
		}
		if spaceCheck.Warning {
			e.log.Warn("disk space is low for this restore", "detail", checks.FormatDiskSpaceMessage(spaceCheck))
		}
	}

	extractDir := filepath.Join(workDir, "extracted")
	if err := archive.Unpack(localArchive, extractDir); err != nil {
		op.Fail("failed to extract archive", "error", err)
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	mapping, err := e.enumerate(extractDir, opts.Mapping)
	if err != nil {
		op.Fail("failed to enumerate databases", "error", err)
		return nil, fmt.Errorf("enumerate databases: %w", err)
	}
	if len(mapping) == 0 {
		op.Complete("archive contained no databases")
		return &Result{}, nil
	}

	mgr, err := admin.Connect(ctx, opts.Target, e.log)
	if err != nil {
		op.Fail("failed to connect to maintenance database", "error", err)
		return nil, err
	}
	defer mgr.Close()

	result := &Result{}
	// Databases are replayed strictly in sequence: submission order equals
	// completion order (§5).
	sources := make([]string, 0, len(mapping))
	for src := range mapping {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		dst := mapping[src]
		dbRes := DatabaseResult{Source: src, Target: dst}
		if err := e.restoreOne(ctx, mgr, opts, extractDir, src, dst); err != nil {
			dbRes.Err = err
			op.Update("database restore failed", "source", src, "target", dst, "error", err)
			audit.LogRestoreFailed(auditUser, dst, err)
		} else {
			audit.LogRestoreComplete(auditUser, dst, time.Since(start))
			op.Update("database restored", "source", src, "target", dst)
		}
		result.Databases = append(result.Databases, dbRes)
	}

	op.Complete("restore finished", "databases", len(result.Databases))
	return result, nil
}

// acquire returns a local path to the archive, downloading it first if
// ArchivePath names an s3:// object.
func (e *Engine) acquire(ctx context.Context, opts Options, workDir string) (string, error) {
	if !cloud.IsObjectURI(opts.ArchivePath) {
		local, err := security.ValidateArchivePath(opts.ArchivePath)
		if err != nil {
			return "", err
		}
		if err := security.LoadAndVerifyChecksum(local); err != nil {
			return "", fmt.Errorf("checksum verification: %w", err)
		}
		return local, nil
	}
	if !opts.S3.Enabled() {
		return "", fmt.Errorf("archive path %q is an s3:// URI but no S3 configuration was supplied", opts.ArchivePath)
	}
	obj, err := cloud.ParseObjectURI(opts.ArchivePath)
	if err != nil {
		return "", err
	}
	client, err := cloud.New(ctx, opts.S3, e.log)
	if err != nil {
		return "", err
	}
	local := filepath.Join(workDir, filepath.Base(obj.Key))
	if err := client.Download(ctx, obj.Key, local, nil); err != nil {
		return "", err
	}
	return local, nil
}

var schemaFileRE = regexp.MustCompile(`^(.+)_schema\.sql$`)

// enumerate resolves the source->target database mapping: mapping keys if
// given explicitly, else every *_schema.sql basename found in extractDir,
// identity-mapped.
func (e *Engine) enumerate(extractDir string, mapping config.RestoreMapping) (config.RestoreMapping, error) {
	if len(mapping) > 0 {
		return mapping, nil
	}
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return nil, err
	}
	result := make(config.RestoreMapping)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := schemaFileRE.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		result[m[1]] = m[1]
	}
	return result, nil
}

// Data-file size thresholds for the large-file advisory (§4.8): past
// largeDataFileAdvisoryBytes the operator gets a heads-up, past
// largeDataFileRecommendBytes a stronger nudge toward the custom-format
// (pg_restore) path instead of the plain psql data load.
const (
	largeDataFileAdvisoryBytes  = 50 * 1024 * 1024
	largeDataFileRecommendBytes = 100 * 1024 * 1024
)

// warnLargeDataFile logs an advisory or a stronger recommendation once a
// database's data-only dump crosses the size thresholds above.
func warnLargeDataFile(log logger.Logger, database string, size int64) {
	if log == nil {
		return
	}
	switch {
	case size > largeDataFileRecommendBytes:
		log.Warn("large data file, prefer the custom-format (pg_restore) path",
			"database", database, "size_mb", size/1024/1024)
	case size > largeDataFileAdvisoryBytes:
		log.Info("large data file, data load may take a while",
			"database", database, "size_mb", size/1024/1024)
	}
}

// restoreOne carries one database through admin prepare, schema apply, data
// apply, verification, and sequence repair.
func (e *Engine) restoreOne(ctx context.Context, mgr *admin.Manager, opts Options, extractDir, src, dst string) error {
	if !config.ValidIdentifier(dst) {
		return &errs.InvalidIdentifier{Value: dst}
	}

	if err := mgr.Prepare(ctx, dst, opts.RestoreOpts); err != nil {
		return err
	}

	targetURI := opts.Target.WithDatabase(dst)
	pool, err := pgxpool.New(ctx, targetURI.String())
	if err != nil {
		return fmt.Errorf("connect to target database %s: %w", dst, err)
	}
	defer pool.Close()

	schemaPath := filepath.Join(extractDir, src+"_schema.sql")
	dataPath := filepath.Join(extractDir, src+"_data.sql")

	if _, err := os.Stat(schemaPath); err == nil {
		applyPath, tables, err := e.prepareSchemaFile(extractDir, schemaPath, src, dst)
		if err != nil {
			return fmt.Errorf("prepare schema file: %w", err)
		}
		if _, err := e.runner.Run(ctx, toolrunner.Invocation{
			Binary:  "psql",
			Args:    []string{"-X", "-q", "-v", "ON_ERROR_STOP=1", "-d", targetURI.String(), "-f", applyPath},
			Timeout: toolrunner.DumpTimeout,
		}); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}

		if dataInfo, err := os.Stat(dataPath); err == nil {
			warnLargeDataFile(e.log, dst, dataInfo.Size())

			applyDataPath, err := e.prepareDataFile(extractDir, dataPath, src, dst, tables)
			if err != nil {
				return fmt.Errorf("prepare data file: %w", err)
			}
			if _, err := e.runner.Run(ctx, toolrunner.Invocation{
				Binary:  "psql",
				Args:    []string{"-X", "-q", "-v", "ON_ERROR_STOP=1", "-1", "-d", targetURI.String(), "-f", applyDataPath},
				Timeout: toolrunner.DataTimeout,
			}); err != nil {
				return fmt.Errorf("apply data: %w", err)
			}
		}
	}

	// Best-effort: archives produced with an optional custom-format dump use
	// pg_restore instead, which tolerates a narrow set of benign warnings.
	dumpPath := filepath.Join(extractDir, src+".dump")
	if _, err := os.Stat(dumpPath); err == nil {
		if err := e.applyDump(ctx, targetURI, dumpPath, opts.Jobs); err != nil {
			return fmt.Errorf("apply dump: %w", err)
		}
	}

	verification.VerifyRestore(ctx, pool, dst, e.log)

	if _, err := sequences.Repair(ctx, pool, dst, e.log); err != nil {
		return err
	}
	return nil
}

// prepareSchemaFile rewrites src->dst references in the schema text if the
// names differ, writing the result alongside the original, and returns the
// table names the schema declares (for data-file truncation).
func (e *Engine) prepareSchemaFile(extractDir, schemaPath, src, dst string) (string, []string, error) {
	raw, err := os.ReadFile(schemaPath)
	if err != nil {
		return "", nil, err
	}
	tables := extractTableNames(string(raw))

	if src == dst {
		return schemaPath, tables, nil
	}
	rewritten := remap.Rewrite(string(raw), src, dst, func(line string) {
		e.log.Warn("possible substring match during rename", "database", dst, "line", strings.TrimSpace(line))
	})
	out := filepath.Join(extractDir, dst+"_schema.rewritten.sql")
	if err := os.WriteFile(out, []byte(rewritten), 0644); err != nil {
		return "", nil, err
	}
	return out, tables, nil
}

// prepareDataFile rewrites src->dst references if needed and always wraps
// the payload with the truncate+replica-mode guard so replay is idempotent.
func (e *Engine) prepareDataFile(extractDir, dataPath, src, dst string, tables []string) (string, error) {
	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return "", err
	}
	text := string(raw)
	if src != dst {
		text = remap.Rewrite(text, src, dst, func(line string) {
			e.log.Warn("possible substring match during rename", "database", dst, "line", strings.TrimSpace(line))
		})
	}
	wrapped := remap.WrapDataFile(text, tables)
	out := filepath.Join(extractDir, dst+"_data.wrapped.sql")
	if err := os.WriteFile(out, []byte(wrapped), 0644); err != nil {
		return "", err
	}
	return out, nil
}

var createTableRE = regexp.MustCompile(`(?im)^CREATE TABLE(?:\s+IF NOT EXISTS)?\s+([A-Za-z0-9_."]+)`)

func extractTableNames(schema string) []string {
	matches := createTableRE.FindAllStringSubmatch(schema, -1)
	seen := make(map[string]bool, len(matches))
	var tables []string
	for _, m := range matches {
		name := strings.Trim(m[1], `"`)
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	return tables
}

// benignWarning matches pg_restore stderr/stdout signatures that are
// tolerated as warnings rather than treated as failure (§7).
var benignWarning = regexp.MustCompile(`(?i)transaction_timeout|errors ignored on restore`)

// applyDump runs pg_restore against a custom-format dump, tolerating the
// narrow set of benign exit-1 warning signatures.
func (e *Engine) applyDump(ctx context.Context, target *config.ConnectionURI, dumpPath string, jobs int) error {
	args := []string{"--no-owner", "--no-acl"}
	if jobs > 1 {
		args = append(args, "--jobs", strconv.Itoa(jobs))
	}
	args = append(args, "-d", target.String(), dumpPath)
	_, err := e.runner.Run(ctx, toolrunner.Invocation{
		Binary:  "pg_restore",
		Args:    args,
		Timeout: toolrunner.DataTimeout,
	})
	if err == nil {
		return nil
	}
	var failed *errs.ToolFailed
	if ok := asToolFailed(err, &failed); ok && !failed.TimedOut && benignWarning.MatchString(failed.Stderr+failed.Stdout) {
		e.log.Warn("pg_restore reported benign warnings", "archive", dumpPath)
		return nil
	}
	return err
}

func asToolFailed(err error, target **errs.ToolFailed) bool {
	tf, ok := err.(*errs.ToolFailed)
	if ok {
		*target = tf
	}
	return ok
}
