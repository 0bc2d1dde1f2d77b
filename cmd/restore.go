package cmd

import (
	"context"
	"fmt"
	"time"

	"dbbackup/internal/config"
	"dbbackup/internal/metrics"
	"dbbackup/internal/restore"
)

func runRestore(ctx context.Context) error {
	start := time.Now()
	target, err := cfg.Target()
	if err != nil {
		return err
	}
	if cfg.ArchiveFilePathForRestore == "" {
		return &config.ConfigError{Field: "archive_file_path_for_restore", Value: "", Message: "required for restore"}
	}

	mapping, err := cfg.Databases()
	if err != nil {
		return err
	}

	if err := cfg.OptimizeForCPU(); err != nil {
		log.Warn("CPU detection failed, restoring without --jobs tuning", "error", err)
	}

	engine := restore.New(log)
	result, err := engine.Run(ctx, restore.Options{
		ArchivePath:  cfg.ArchiveFilePathForRestore,
		Target:       target,
		Mapping:      mapping,
		RestoreOpts:  cfg.RestoreOpts(),
		S3:           cfg.S3(),
		TempRoot:     cfg.TempDumpRoot,
		Jobs:         cfg.RestoreJobs,
		AuditEnabled: cfg.AuditEnabled,
	})
	if err != nil {
		if metrics.GlobalMetrics != nil {
			metrics.GlobalMetrics.RecordOperation("restore", "fleet", start, 0, false, 1)
		}
		return err
	}

	failed := 0
	for _, db := range result.Databases {
		if db.Err != nil {
			failed++
			fmt.Printf("FAILED  %s -> %s: %v\n", db.Source, db.Target, db.Err)
		} else {
			fmt.Printf("OK      %s -> %s\n", db.Source, db.Target)
		}
	}
	if metrics.GlobalMetrics != nil {
		metrics.GlobalMetrics.RecordOperation("restore", "fleet", start, 0, failed == 0, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d databases failed to restore", failed, len(result.Databases))
	}
	return nil
}
