package cloud

import "testing"

func TestParseObjectURI(t *testing.T) {
	u, err := ParseObjectURI("s3://fleet-backups/2026-07-31_02-00-00.tar.gz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Bucket != "fleet-backups" || u.Key != "2026-07-31_02-00-00.tar.gz" {
		t.Errorf("unexpected parse result: %+v", u)
	}
}

func TestParseObjectURI_NestedKey(t *testing.T) {
	u, err := ParseObjectURI("s3://fleet-backups/daily/2026-07-31_02-00-00.tar.gz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Key != "daily/2026-07-31_02-00-00.tar.gz" {
		t.Errorf("expected nested key preserved, got %q", u.Key)
	}
}

func TestParseObjectURI_NotAnS3URI(t *testing.T) {
	if _, err := ParseObjectURI("/local/path/archive.tar.gz"); err == nil {
		t.Error("expected error for a non-s3:// URI")
	}
}

func TestParseObjectURI_MissingBucket(t *testing.T) {
	if _, err := ParseObjectURI("s3:///key-only"); err == nil {
		t.Error("expected error when bucket is empty")
	}
}

func TestParseObjectURI_MissingKey(t *testing.T) {
	if _, err := ParseObjectURI("s3://bucket-only"); err == nil {
		t.Error("expected error when key is missing")
	}
}

func TestIsObjectURI(t *testing.T) {
	if !IsObjectURI("s3://bucket/key") {
		t.Error("expected s3:// prefixed string to be recognized")
	}
	if IsObjectURI("/local/path") {
		t.Error("expected a local path to not be recognized as an object URI")
	}
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey("", "archive.tar.gz"); got != "archive.tar.gz" {
		t.Errorf("BuildKey with empty prefix = %q, want archive.tar.gz", got)
	}
	if got := BuildKey("daily", "archive.tar.gz"); got != "daily/archive.tar.gz" {
		t.Errorf("BuildKey with prefix = %q, want daily/archive.tar.gz", got)
	}
}
