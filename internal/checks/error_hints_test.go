package checks

import (
	"strings"
	"testing"
)

func TestClassifyError_AlreadyExists(t *testing.T) {
	c := ClassifyError(`ERROR: relation "users" already exists`)
	if c.Type != "ignorable" || c.Severity != 0 {
		t.Errorf("expected ignorable/severity 0, got %+v", c)
	}
}

func TestClassifyError_DiskFull(t *testing.T) {
	c := ClassifyError("could not write to file: No space left on device")
	if c.Type != "critical" || c.Category != "disk_space" || c.Severity != 3 {
		t.Errorf("expected critical/disk_space/severity 3, got %+v", c)
	}
}

func TestClassifyError_LockExhaustion(t *testing.T) {
	c := ClassifyError("ERROR: out of shared memory\nHINT: You might need to increase max_locks_per_transaction")
	if c.Category != "locks" {
		t.Errorf("expected locks category, got %+v", c)
	}
}

func TestClassifyError_PermissionDenied(t *testing.T) {
	c := ClassifyError("ERROR: permission denied for table users")
	if c.Category != "permissions" {
		t.Errorf("expected permissions category, got %+v", c)
	}
}

func TestClassifyError_ConnectionFailed(t *testing.T) {
	c := ClassifyError("psql: error: connection refused")
	if c.Category != "network" {
		t.Errorf("expected network category, got %+v", c)
	}
}

func TestClassifyError_VersionMismatch(t *testing.T) {
	c := ClassifyError("pg_restore: server version mismatch with dump")
	if c.Type != "warning" || c.Category != "version" {
		t.Errorf("expected warning/version, got %+v", c)
	}
}

func TestClassifyError_Unknown(t *testing.T) {
	c := ClassifyError("something unexpected happened")
	if c.Category != "unknown" || c.Severity != 2 {
		t.Errorf("expected unknown/severity 2 for an unrecognized message, got %+v", c)
	}
}

func TestFormatErrorWithHint_IncludesHintAndAction(t *testing.T) {
	out := FormatErrorWithHint("No space left on device")
	if !strings.Contains(out, "Hint:") || !strings.Contains(out, "Action:") {
		t.Errorf("expected formatted output to include a hint and action, got:\n%s", out)
	}
}

func TestFormatMultipleErrors_Empty(t *testing.T) {
	out := FormatMultipleErrors(nil)
	if !strings.Contains(out, "No errors") {
		t.Errorf("expected a no-errors message, got %q", out)
	}
}

func TestFormatMultipleErrors_Summary(t *testing.T) {
	out := FormatMultipleErrors([]string{
		`relation "users" already exists`,
		"No space left on device",
		"permission denied for table users",
	})
	if !strings.Contains(out, "ignorable") || !strings.Contains(out, "critical errors") {
		t.Errorf("expected a summary breaking down error types, got:\n%s", out)
	}
}
