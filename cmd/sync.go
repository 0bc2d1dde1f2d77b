package cmd

import (
	"context"
	"fmt"
	"time"

	"dbbackup/internal/metrics"
	"dbbackup/internal/sync"
)

func runSync(ctx context.Context) error {
	start := time.Now()
	source, err := cfg.Source()
	if err != nil {
		return err
	}
	target, err := cfg.Target()
	if err != nil {
		return err
	}

	mapping, err := cfg.Databases()
	if err != nil {
		return err
	}
	var databases []string
	for name := range mapping {
		databases = append(databases, name)
	}

	if err := cfg.OptimizeForCPU(); err != nil {
		log.Warn("CPU detection failed, syncing without --jobs tuning", "error", err)
	}

	engine := sync.New(log)
	result, err := engine.Run(ctx, sync.Options{
		Source:    source,
		Target:    target,
		Databases: databases,
		TempRoot:  cfg.TempDumpRoot,
		Jobs:      cfg.RestoreJobs,
	})
	if err != nil {
		if metrics.GlobalMetrics != nil {
			metrics.GlobalMetrics.RecordOperation("sync", "fleet", start, 0, false, 1)
		}
		return err
	}

	failed := 0
	for _, db := range result.Databases {
		if db.Err != nil {
			failed++
			fmt.Printf("FAILED  %s: %v\n", db.Database, db.Err)
		} else {
			fmt.Printf("OK      %s\n", db.Database)
		}
	}
	if metrics.GlobalMetrics != nil {
		metrics.GlobalMetrics.RecordOperation("sync", "fleet", start, 0, failed == 0, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d databases failed to sync", failed, len(result.Databases))
	}
	return nil
}
