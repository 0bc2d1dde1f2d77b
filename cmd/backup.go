package cmd

import (
	"context"
	"fmt"
	"time"

	"dbbackup/internal/backup"
	"dbbackup/internal/config"
	"dbbackup/internal/metrics"
)

func runBackup(ctx context.Context) error {
	start := time.Now()
	source, err := cfg.Source()
	if err != nil {
		return err
	}

	var databases []string
	mapping, err := cfg.Databases()
	if err != nil {
		return err
	}
	for name := range mapping {
		databases = append(databases, name)
	}

	if cfg.LocalBackupDir == "" {
		return &config.ConfigError{Field: "local_backup_dir", Value: "", Message: "required for backup"}
	}

	engine := backup.New(log)
	result, err := engine.Run(ctx, backup.Options{
		Source:        source,
		Databases:     databases,
		LocalDir:      cfg.LocalBackupDir,
		TempRoot:      cfg.TempDumpRoot,
		S3:            cfg.S3(),
		AuditEnabled:  cfg.AuditEnabled,
		RetentionDays: cfg.RetentionDays,
		MinBackups:    cfg.MinBackups,
	})
	if err != nil {
		if metrics.GlobalMetrics != nil {
			metrics.GlobalMetrics.RecordOperation("backup", "fleet", start, 0, false, 1)
		}
		return err
	}
	if metrics.GlobalMetrics != nil {
		metrics.GlobalMetrics.RecordOperation("backup", "fleet", start, result.ArchiveBytes, true, 0)
		if result.RawBytes > 0 {
			metrics.GlobalMetrics.RecordCompressionRatio("backup", "fleet", float64(result.ArchiveBytes)/float64(result.RawBytes))
		}
	}

	fmt.Printf("backup archive: %s\n", result.ArchivePath)
	if result.UploadedTo != "" {
		fmt.Printf("uploaded to: %s\n", result.UploadedTo)
	}
	fmt.Printf("databases: %d\n", len(result.Databases))
	return nil
}
