package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cpuCmd = &cobra.Command{
	Use:   "cpu",
	Short: "Show CPU information and restore/sync parallelism settings",
	Long:  `Display detected CPU information and the --jobs value it drives for pg_restore.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCPUInfo(cmd.Context())
	},
}

func runCPUInfo(ctx context.Context) error {
	log.Info("detecting CPU information")

	if cfg.AutoDetectCores {
		if err := cfg.OptimizeForCPU(); err != nil {
			log.Warn("CPU optimization failed", "error", err)
		}
	}

	cpuInfo, err := cfg.GetCPUInfo()
	if err != nil {
		return fmt.Errorf("detect CPU: %w", err)
	}

	fmt.Println("=== CPU Information ===")
	fmt.Print(cpuInfo.FormatCPUInfo())

	fmt.Println("\n=== Current Configuration ===")
	fmt.Printf("Auto-detect cores: %t\n", cfg.AutoDetectCores)
	fmt.Printf("Workload type: %s\n", cfg.CPUWorkloadType)
	fmt.Printf("pg_restore --jobs: %d\n", cfg.RestoreJobs)
	fmt.Printf("Maximum cores limit: %d\n", cfg.MaxCores)

	if !cfg.AutoDetectCores {
		fmt.Println("\nauto-detect is disabled; pg_restore runs without --jobs tuning")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(cpuCmd)
}
