// Package cmd implements the CLI surface (§6): a single positional mode
// selector (backup/restore/sync, by name or number), prompted interactively
// on stdin when omitted, operating against a config.json file.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dbbackup/internal/config"
	"dbbackup/internal/logger"
	"dbbackup/internal/security"
)

var (
	cfg        *config.Config
	log        logger.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dbbackup [backup|restore|sync]",
	Short: "PostgreSQL fleet backup, restore, and sync orchestrator",
	Long: `dbbackup drives a fleet of PostgreSQL databases through three
operations, driven entirely by config.json:

  backup   dump every selected database, seal it into one archive, optionally upload it
  restore  replay an archive (local or s3://) into a target server, with optional renaming
  sync     replicate databases directly from one server to another, no archive involved

Pass the mode as a positional argument or let dbbackup prompt for it.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.New(cfg.LogLevel, cfg.LogFormat)
		return security.NewPrivilegeChecker(log).CheckAndWarn(cfg.AllowRoot)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := ""
		if len(args) > 0 {
			mode = args[0]
		}
		if mode == "" {
			var err error
			mode, err = promptMode(cmd.InOrStdin())
			if err != nil {
				return err
			}
		}
		return dispatch(cmd.Context(), mode)
	},
}

// Execute runs the root command to completion.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to config.json")
}

// promptMode prints the mode menu and returns the first line read from r
// with surrounding whitespace trimmed.
func promptMode(r io.Reader) (string, error) {
	fmt.Println("Select an operation:")
	fmt.Println("  1) backup")
	fmt.Println("  2) restore")
	fmt.Println("  3) sync")
	fmt.Print("> ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read mode selection: %w", err)
		}
		return "", fmt.Errorf("no operation selected")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// dispatch resolves mode (by name or number) and runs the matching command.
func dispatch(ctx context.Context, mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "1", "backup":
		return runBackup(ctx)
	case "2", "restore":
		return runRestore(ctx)
	case "3", "sync":
		return runSync(ctx)
	default:
		return fmt.Errorf("unrecognized operation %q: expected 1|backup, 2|restore, or 3|sync", mode)
	}
}
