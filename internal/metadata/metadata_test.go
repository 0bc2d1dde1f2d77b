package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCalculateSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(path, []byte("fleet backup payload"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	sum, err := CalculateSHA256(path)
	if err != nil {
		t.Fatalf("CalculateSHA256: %v", err)
	}
	if len(sum) != 64 {
		t.Errorf("expected a 64-char hex digest, got %d chars: %q", len(sum), sum)
	}

	sum2, err := CalculateSHA256(path)
	if err != nil {
		t.Fatalf("CalculateSHA256: %v", err)
	}
	if sum != sum2 {
		t.Error("expected CalculateSHA256 to be deterministic for the same file")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "2026-07-31_02-00-00.tar.gz")

	meta := &ArchiveMetadata{
		Timestamp:   time.Date(2026, 7, 31, 2, 0, 0, 0, time.UTC),
		SourceHost:  "db.internal",
		SourcePort:  5432,
		ArchiveFile: archivePath,
		SizeBytes:   1234,
		SHA256:      "deadbeef",
		Databases: []DatabaseEntry{
			{Name: "app", SchemaFile: "app_schema.sql", DataFile: "app_data.sql", SchemaBytes: 100, DataBytes: 900},
		},
		DurationSeconds: 12.5,
	}

	if err := meta.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(archivePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SHA256 != meta.SHA256 || loaded.SourceHost != meta.SourceHost {
		t.Errorf("loaded metadata mismatch: %+v", loaded)
	}
	if len(loaded.Databases) != 1 || loaded.Databases[0].Name != "app" {
		t.Errorf("expected one database entry named app, got %+v", loaded.Databases)
	}

	if _, err := os.Stat(archivePath + ".meta.json"); err != nil {
		t.Errorf("expected sidecar file to exist: %v", err)
	}
}

func TestLoad_MissingSidecar(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.tar.gz")); err == nil {
		t.Error("expected error when the .meta.json sidecar is absent")
	}
}

func TestListArchives(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.tar.gz", "b.tar.gz"} {
		path := filepath.Join(dir, name)
		meta := &ArchiveMetadata{ArchiveFile: path, SourceHost: "db.internal"}
		if err := meta.Save(); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	archives, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 2 {
		t.Errorf("expected 2 archives, got %d", len(archives))
	}
}

func TestListArchives_EmptyDir(t *testing.T) {
	archives, err := ListArchives(t.TempDir())
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 0 {
		t.Errorf("expected no archives, got %d", len(archives))
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		500:            "500 B",
		1024:           "1.0 KiB",
		1024 * 1024:    "1.0 MiB",
		3 * 1024 * 1024 * 1024: "3.0 GiB",
	}
	for bytes, want := range cases {
		if got := FormatSize(bytes); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", bytes, got, want)
		}
	}
}
