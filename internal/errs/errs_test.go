package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestToolMissing_Error(t *testing.T) {
	err := &ToolMissing{Binary: "pg_dump"}
	if !strings.Contains(err.Error(), "pg_dump") {
		t.Errorf("expected error message to name the binary, got %q", err.Error())
	}
}

func TestToolFailed_Error_TimedOut(t *testing.T) {
	err := &ToolFailed{Binary: "pg_restore", TimedOut: true}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout message, got %q", err.Error())
	}
}

func TestToolFailed_Error_NonZeroExit(t *testing.T) {
	err := &ToolFailed{Binary: "pg_dump", Status: 1, Stderr: "connection refused"}
	msg := err.Error()
	if !strings.Contains(msg, "status 1") || !strings.Contains(msg, "connection refused") {
		t.Errorf("expected exit status and stderr in message, got %q", msg)
	}
}

func TestAdminDenied_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := &AdminDenied{Database: "app", Action: "drop", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through AdminDenied to its cause")
	}
}

func TestArchiveError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &ArchiveError{Path: "/backups/a.tar.gz", Op: "pack", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through ArchiveError to its cause")
	}
}

func TestObjectStoreError_Message(t *testing.T) {
	err := &ObjectStoreError{Op: "upload", Bucket: "fleet-backups", Key: "a.tar.gz", Err: errors.New("timeout")}
	msg := err.Error()
	if !strings.Contains(msg, "fleet-backups") || !strings.Contains(msg, "a.tar.gz") {
		t.Errorf("expected bucket and key in message, got %q", msg)
	}
}

func TestSequenceRepairError_Unwrap(t *testing.T) {
	cause := errors.New("timed out after 5m0s")
	err := &SequenceRepairError{Database: "app", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through SequenceRepairError to its cause")
	}
}

func TestInvalidIdentifier_Error(t *testing.T) {
	err := &InvalidIdentifier{Value: "bad db"}
	if !strings.Contains(err.Error(), "bad db") {
		t.Errorf("expected the offending value in the message, got %q", err.Error())
	}
}

func TestProtectedDB_Error(t *testing.T) {
	err := &ProtectedDB{Database: "postgres"}
	if !strings.Contains(err.Error(), "postgres") {
		t.Errorf("expected database name in message, got %q", err.Error())
	}
}
