package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPackAndUnpack_RoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "app_schema.sql"), []byte("CREATE TABLE t (id int);"), 0644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "app_data.sql"), []byte("INSERT INTO t VALUES (1);"), 0644); err != nil {
		t.Fatalf("write data file: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := Pack(src, dest); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected archive to exist: %v", err)
	}

	extractDir := filepath.Join(t.TempDir(), "extracted")
	if err := Unpack(dest, extractDir); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	schema, err := os.ReadFile(filepath.Join(extractDir, "app_schema.sql"))
	if err != nil {
		t.Fatalf("read extracted schema: %v", err)
	}
	if string(schema) != "CREATE TABLE t (id int);" {
		t.Errorf("unexpected schema content: %q", schema)
	}

	data, err := os.ReadFile(filepath.Join(extractDir, "sub", "app_data.sql"))
	if err != nil {
		t.Fatalf("read extracted data file: %v", err)
	}
	if string(data) != "INSERT INTO t VALUES (1);" {
		t.Errorf("unexpected data content: %q", data)
	}
}

func TestPack_SourceNotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := Pack(file, filepath.Join(dir, "out.tar.gz")); err == nil {
		t.Error("expected error when srcDir is not a directory")
	}
}

func TestPack_SourceMissing(t *testing.T) {
	dir := t.TempDir()
	if err := Pack(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "out.tar.gz")); err == nil {
		t.Error("expected error when srcDir does not exist")
	}
}

func TestUnpack_RefusesWhenDestIsFile(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive.tar.gz")
	if err := Pack(t.TempDir(), archive); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	destFile := filepath.Join(dir, "dest-is-a-file")
	if err := os.WriteFile(destFile, []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := Unpack(archive, destFile); err == nil {
		t.Error("expected error when destDir already exists as a regular file")
	}
}
