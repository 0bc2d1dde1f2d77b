package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"dbbackup/internal/cloud"
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Object store operations against the configured S3 location",
	Long: `Upload, download, or probe archives against the s3_storage settings in
config.json, independent of a full backup or restore run.`,
}

var cloudUploadCmd = &cobra.Command{
	Use:   "upload [local-file] [key]",
	Short: "Upload a local file to the configured bucket",
	Args:  cobra.ExactArgs(2),
	RunE:  runCloudUpload,
}

var cloudDownloadCmd = &cobra.Command{
	Use:   "download [key] [local-file]",
	Short: "Download an object from the configured bucket",
	Args:  cobra.ExactArgs(2),
	RunE:  runCloudDownload,
}

var cloudExistsCmd = &cobra.Command{
	Use:   "exists [key]",
	Short: "Check whether a key exists in the configured bucket",
	Args:  cobra.ExactArgs(1),
	RunE:  runCloudExists,
}

func init() {
	cloudCmd.AddCommand(cloudUploadCmd, cloudDownloadCmd, cloudExistsCmd)
	rootCmd.AddCommand(cloudCmd)
}

func newCloudClient(cmd *cobra.Command) (*cloud.Client, error) {
	loc := cfg.S3()
	if !loc.Enabled() {
		return nil, fmt.Errorf("no S3 location configured")
	}
	client, err := cloud.New(cmd.Context(), loc, log)
	if err != nil {
		return nil, err
	}
	client.Probe(cmd.Context())
	return client, nil
}

func runCloudUpload(cmd *cobra.Command, args []string) error {
	client, err := newCloudClient(cmd)
	if err != nil {
		return err
	}
	localPath, key := args[0], args[1]
	fmt.Printf("uploading %s -> s3://%s/%s\n", filepath.Base(localPath), cfg.S3().Bucket, key)
	if err := client.Upload(cmd.Context(), localPath, key, 0, nil); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	fmt.Println("done")
	return nil
}

func runCloudDownload(cmd *cobra.Command, args []string) error {
	client, err := newCloudClient(cmd)
	if err != nil {
		return err
	}
	key, localPath := args[0], args[1]
	fmt.Printf("downloading s3://%s/%s -> %s\n", cfg.S3().Bucket, key, localPath)
	if err := client.Download(cmd.Context(), key, localPath, nil); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	fmt.Println("done")
	return nil
}

func runCloudExists(cmd *cobra.Command, args []string) error {
	client, err := newCloudClient(cmd)
	if err != nil {
		return err
	}
	exists, err := client.Exists(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if exists {
		fmt.Printf("s3://%s/%s exists\n", cfg.S3().Bucket, args[0])
	} else {
		fmt.Printf("s3://%s/%s does not exist\n", cfg.S3().Bucket, args[0])
		return fmt.Errorf("key not found")
	}
	return nil
}
