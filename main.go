package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dbbackup/cmd"
	"dbbackup/internal/checks"
	"dbbackup/internal/cleanup"
	"dbbackup/internal/logger"
	"dbbackup/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bootLog := logger.New("info", "text")
	metrics.InitGlobalMetrics(bootLog)

	// A prior run killed by SIGKILL can leave pg_dump/pg_restore/gzip
	// children behind; sweep them before starting a new operation.
	if err := cleanup.KillOrphanedProcesses(bootLog); err != nil {
		bootLog.Warn("orphaned process cleanup reported errors", "error", err)
	}

	defer func() {
		if metrics.GlobalMetrics != nil {
			avgs := metrics.GlobalMetrics.GetAverages()
			if ops, ok := avgs["total_operations"].(int); ok && ops > 0 {
				fmt.Printf("\nsession summary: %d operations, %.1f%% success rate\n", ops, avgs["success_rate"])
			}
		}
	}()

	if err := cmd.Execute(ctx); err != nil {
		bootLog.Error("operation failed", "error", err)
		fmt.Println(checks.FormatErrorWithHint(err.Error()))
		os.Exit(1)
	}
}
