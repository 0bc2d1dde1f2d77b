package verification

import (
	"os"
	"path/filepath"
	"testing"

	"dbbackup/internal/metadata"
)

func writeSealedArchive(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	sum, err := metadata.CalculateSHA256(path)
	if err != nil {
		t.Fatalf("CalculateSHA256: %v", err)
	}
	meta := &metadata.ArchiveMetadata{
		ArchiveFile: path,
		SizeBytes:   int64(len(content)),
		SHA256:      sum,
	}
	if err := meta.Save(); err != nil {
		t.Fatalf("Save metadata: %v", err)
	}
	return path
}

func TestVerify_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeSealedArchive(t, dir, "archive.tar.gz", []byte("fleet backup payload"))

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid result, got %+v", result)
	}
}

func TestVerify_MissingFile(t *testing.T) {
	result, err := Verify(filepath.Join(t.TempDir(), "nonexistent.tar.gz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid || result.FileExists {
		t.Errorf("expected FileExists=false and Valid=false, got %+v", result)
	}
}

func TestVerify_MissingMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid || result.MetadataExists {
		t.Errorf("expected MetadataExists=false and Valid=false, got %+v", result)
	}
}

func TestVerify_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeSealedArchive(t, dir, "archive.tar.gz", []byte("original payload"))
	if err := os.WriteFile(path, []byte("shorter"), 0644); err != nil {
		t.Fatalf("rewrite archive: %v", err)
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid || result.SizeMatch {
		t.Errorf("expected a size mismatch to invalidate the result, got %+v", result)
	}
}

func TestVerify_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeSealedArchive(t, dir, "archive.tar.gz", []byte("original payload"))
	// Same length, different bytes, so SizeMatch still passes but checksum diverges.
	if err := os.WriteFile(path, []byte("tampered payload!"), 0644); err != nil {
		t.Fatalf("rewrite archive: %v", err)
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Error("expected checksum mismatch to invalidate the result")
	}
}

func TestVerifyMultiple(t *testing.T) {
	dir := t.TempDir()
	a := writeSealedArchive(t, dir, "a.tar.gz", []byte("payload-a"))
	b := writeSealedArchive(t, dir, "b.tar.gz", []byte("payload-b"))

	results, err := VerifyMultiple([]string{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || !results[0].Valid || !results[1].Valid {
		t.Errorf("expected both archives valid, got %+v", results)
	}
}

func TestQuickCheck_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeSealedArchive(t, dir, "archive.tar.gz", []byte("payload"))
	if err := QuickCheck(path); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestQuickCheck_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeSealedArchive(t, dir, "archive.tar.gz", []byte("original payload"))
	if err := os.WriteFile(path, []byte("short"), 0644); err != nil {
		t.Fatalf("rewrite archive: %v", err)
	}
	if err := QuickCheck(path); err == nil {
		t.Error("expected QuickCheck to fail on a size mismatch")
	}
}

func TestQuickCheck_MissingFile(t *testing.T) {
	if err := QuickCheck(filepath.Join(t.TempDir(), "nonexistent.tar.gz")); err == nil {
		t.Error("expected error for a missing file")
	}
}
