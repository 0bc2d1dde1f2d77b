package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"dbbackup/internal/admin"
	"dbbackup/internal/metrics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, recent metrics, and source connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context())
	},
}

var statusReset bool

func init() {
	statusCmd.Flags().BoolVar(&statusReset, "reset-metrics", false, "clear the in-memory operation metrics after printing them")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx context.Context) error {
	fmt.Println("==============================================================")
	fmt.Println(" dbbackup status")
	fmt.Println("==============================================================")

	displayStatusConfig()
	displayStatusMetrics()

	return testSourceConnection(ctx)
}

func displayStatusConfig() {
	fmt.Println("\nConfiguration:")
	fmt.Printf("  Local backup dir: %s\n", cfg.LocalBackupDir)
	fmt.Printf("  Temp dump root:   %s\n", cfg.TempDumpRoot)
	fmt.Printf("  S3 enabled:       %v\n", cfg.S3().Enabled())
	fmt.Printf("  Auto-detect jobs: %v (%s)\n", cfg.AutoDetectCores, cfg.CPUWorkloadType)
	fmt.Printf("  Audit logging:    %v\n", cfg.AuditEnabled)
	fmt.Printf("  Retention:        %d days, min %d backups\n", cfg.RetentionDays, cfg.MinBackups)

	fmt.Println("\nSystem:")
	fmt.Printf("  OS/Arch:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  CPU cores: %d\n", runtime.NumCPU())
	fmt.Printf("  Go:        %s\n", runtime.Version())

	if info, err := os.Stat(cfg.LocalBackupDir); err != nil {
		fmt.Printf("  Backup dir: %s (does not exist yet)\n", cfg.LocalBackupDir)
	} else if info.IsDir() {
		fmt.Printf("  Backup dir: %s (exists)\n", cfg.LocalBackupDir)
	} else {
		fmt.Printf("  Backup dir: %s (exists but is not a directory)\n", cfg.LocalBackupDir)
	}
}

func displayStatusMetrics() {
	fmt.Println("\nRecent operations:")
	if metrics.GlobalMetrics == nil {
		fmt.Println("  metrics collector not initialized")
		return
	}
	recorded := metrics.GlobalMetrics.GetMetrics()
	if len(recorded) == 0 {
		fmt.Println("  none recorded this run")
	} else {
		for _, m := range recorded {
			status := "ok"
			if !m.Success {
				status = fmt.Sprintf("failed (%d errors)", m.ErrorCount)
			}
			fmt.Printf("  %-10s %-10s %s  %s\n", m.Operation, m.Database, m.Duration.Round(time.Millisecond), status)
		}
		avgs := metrics.GlobalMetrics.GetAverages()
		fmt.Printf("  averages: %v\n", avgs)
	}
	if statusReset {
		metrics.GlobalMetrics.Clear()
		fmt.Println("  metrics cleared")
	}
}

// testSourceConnection opens a maintenance connection to the configured
// source, the cheapest possible end-to-end connectivity check.
func testSourceConnection(ctx context.Context) error {
	source, err := cfg.Source()
	if err != nil {
		fmt.Println("\nno source_database_url configured; skipping connectivity check")
		return nil
	}

	fmt.Printf("\nConnecting to %s...\n", source.Redacted())
	mgr, err := admin.Connect(ctx, source, log)
	if err != nil {
		fmt.Printf("  FAILED: %v\n", err)
		return err
	}
	defer mgr.Close()
	fmt.Println("  connected")
	return nil
}
