// Package metadata manages the .meta.json sidecar written alongside each
// sealed ArchiveBundle, recording per-database provenance and a checksum for
// later verification (C11).
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DatabaseEntry records one database's contribution to an archive.
type DatabaseEntry struct {
	Name          string `json:"name"`
	SchemaFile    string `json:"schema_file"`
	DataFile      string `json:"data_file"`
	SchemaBytes   int64  `json:"schema_bytes"`
	DataBytes     int64  `json:"data_bytes"`
}

// ArchiveMetadata describes a sealed ArchiveBundle.
type ArchiveMetadata struct {
	Timestamp       time.Time       `json:"timestamp"`
	SourceHost      string          `json:"source_host"`
	SourcePort      int             `json:"source_port"`
	ArchiveFile     string          `json:"archive_file"`
	SizeBytes       int64           `json:"size_bytes"`
	SHA256          string          `json:"sha256"`
	Databases       []DatabaseEntry `json:"databases"`
	DurationSeconds float64         `json:"duration_seconds"`
	UploadedTo      string          `json:"uploaded_to,omitempty"`
}

// CalculateSHA256 computes the SHA-256 checksum of a file.
func CalculateSHA256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Save writes metadata to "<archiveFile>.meta.json".
func (m *ArchiveMetadata) Save() error {
	metaPath := m.ArchiveFile + ".meta.json"
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads metadata from "<archiveFile>.meta.json".
func Load(archiveFile string) (*ArchiveMetadata, error) {
	metaPath := archiveFile + ".meta.json"
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var meta ArchiveMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &meta, nil
}

// ListArchives scans a directory for archives with sidecar metadata.
func ListArchives(dir string) ([]*ArchiveMetadata, error) {
	pattern := filepath.Join(dir, "*.meta.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	var archives []*ArchiveMetadata
	for _, metaFile := range matches {
		archiveFile := metaFile[:len(metaFile)-len(".meta.json")]
		meta, err := Load(archiveFile)
		if err != nil {
			continue
		}
		archives = append(archives, meta)
	}
	return archives, nil
}

// FormatSize returns a human-readable size.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
