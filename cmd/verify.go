package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dbbackup/internal/cloud"
	"dbbackup/internal/metadata"
	"dbbackup/internal/security"
	"dbbackup/internal/verification"
)

var verifyBackupCmd = &cobra.Command{
	Use:   "verify-backup [backup-file ...]",
	Short: "Verify sealed archive integrity against its metadata sidecar",
	Long: `Verify that one or more archives produced by a backup run have not been
corrupted, by comparing their SHA-256 against the .meta.json sidecar written
at seal time.

Examples:
  dbbackup verify-backup /backups/2026-07-31_02-00-00.tar.gz
  dbbackup verify-backup /backups/*.tar.gz
  dbbackup verify-backup s3://fleet-backups/2026-07-31_02-00-00.tar.gz
  dbbackup verify-backup --quick /backups/2026-07-31_02-00-00.tar.gz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerifyBackup,
}

var (
	quickVerify   bool
	verboseVerify bool
)

func init() {
	rootCmd.AddCommand(verifyBackupCmd)
	verifyBackupCmd.Flags().BoolVar(&quickVerify, "quick", false, "size check only, skip SHA-256 recomputation")
	verifyBackupCmd.Flags().BoolVarP(&verboseVerify, "verbose", "v", false, "print metadata detail for each archive")
}

func runVerifyBackup(cmd *cobra.Command, args []string) error {
	var localFiles []string
	var cloudURIs []string
	for _, arg := range args {
		if cloud.IsObjectURI(arg) {
			cloudURIs = append(cloudURIs, arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			localFiles = append(localFiles, arg)
		} else {
			localFiles = append(localFiles, matches...)
		}
	}

	successCount, failureCount := 0, 0

	if len(localFiles) > 0 {
		fmt.Printf("Verifying %d local archive(s)...\n\n", len(localFiles))
		n, f := verifyLocalFiles(localFiles)
		successCount += n
		failureCount += f
	}

	if len(cloudURIs) > 0 {
		fmt.Printf("Verifying %d cloud archive(s)...\n\n", len(cloudURIs))
		n, f := verifyCloudFiles(cmd, cloudURIs)
		successCount += n
		failureCount += f
	}

	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Total: %d archives\n", successCount+failureCount)
	fmt.Printf("Valid: %d\n", successCount)
	if failureCount > 0 {
		fmt.Printf("Failed: %d\n", failureCount)
		return fmt.Errorf("%d of %d archives failed verification", failureCount, successCount+failureCount)
	}
	return nil
}

func verifyLocalFiles(files []string) (success, failure int) {
	for _, backupFile := range files {
		if strings.HasSuffix(backupFile, ".meta.json") || strings.HasSuffix(backupFile, ".sha256") {
			continue
		}
		fmt.Printf("%s\n", filepath.Base(backupFile))

		if quickVerify {
			if err := verification.QuickCheck(backupFile); err != nil {
				fmt.Printf("  FAILED: %v\n\n", err)
				failure++
				continue
			}
			fmt.Printf("  VALID (quick check)\n\n")
			success++
			continue
		}

		result, err := verification.Verify(backupFile)
		if err != nil {
			fmt.Printf("  FAILED: %v\n\n", err)
			failure++
			continue
		}
		if !result.Valid {
			fmt.Printf("  FAILED: %v\n", result.Error)
			if verboseVerify {
				switch {
				case !result.FileExists:
					fmt.Println("  file does not exist")
				case !result.MetadataExists:
					fmt.Println("  metadata sidecar missing")
				case !result.SizeMatch:
					fmt.Println("  size mismatch")
				default:
					fmt.Printf("  expected: %s\n  got:      %s\n", result.ExpectedSHA256, result.CalculatedSHA256)
				}
			}
			fmt.Println()
			failure++
			continue
		}

		fmt.Printf("  VALID\n")
		if verboseVerify {
			printArchiveDetail(backupFile)
		}
		fmt.Println()
		success++
	}
	return success, failure
}

func verifyCloudFiles(cmd *cobra.Command, uris []string) (success, failure int) {
	s3 := cfg.S3()
	if !s3.Enabled() {
		fmt.Println("  no S3 configuration available to download cloud archives")
		return 0, len(uris)
	}
	client, err := cloud.New(cmd.Context(), s3, log)
	if err != nil {
		fmt.Printf("  FAILED: connect to object store: %v\n", err)
		return 0, len(uris)
	}

	for _, uri := range uris {
		fmt.Printf("%s\n", uri)
		obj, err := cloud.ParseObjectURI(uri)
		if err != nil {
			fmt.Printf("  FAILED: %v\n\n", err)
			failure++
			continue
		}
		local := filepath.Join(os.TempDir(), "verify-"+filepath.Base(obj.Key))
		if err := client.Download(cmd.Context(), obj.Key, local, nil); err != nil {
			fmt.Printf("  FAILED: download: %v\n\n", err)
			failure++
			continue
		}

		ok := func() bool {
			defer os.Remove(local)
			if quickVerify {
				if err := verification.QuickCheck(local); err != nil {
					fmt.Printf("  FAILED: %v\n\n", err)
					return false
				}
				fmt.Printf("  VALID (quick check)\n\n")
				return true
			}
			if err := security.LoadAndVerifyChecksum(local); err != nil {
				fmt.Printf("  FAILED: checksum sidecar: %v\n\n", err)
				return false
			}
			fmt.Printf("  VALID\n")
			if verboseVerify {
				printArchiveDetail(local)
			}
			fmt.Println()
			return true
		}()
		if ok {
			success++
		} else {
			failure++
		}
	}
	return success, failure
}

func printArchiveDetail(path string) {
	meta, err := metadata.Load(path)
	if err != nil {
		return
	}
	fmt.Printf("  size:     %s\n", metadata.FormatSize(meta.SizeBytes))
	fmt.Printf("  sha256:   %s\n", meta.SHA256)
	fmt.Printf("  databases: %d\n", len(meta.Databases))
	fmt.Printf("  created:  %s\n", meta.Timestamp.Format(time.RFC3339))
}
