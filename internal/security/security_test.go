package security

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dbbackup/internal/logger"
)

func TestCleanPath_RejectsTraversal(t *testing.T) {
	if _, err := CleanPath("../../etc/passwd"); err == nil {
		t.Error("expected error for path traversal attempt")
	}
}

func TestCleanPath_Empty(t *testing.T) {
	if _, err := CleanPath(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestValidateBackupPath_ReturnsAbsolute(t *testing.T) {
	abs, err := ValidateBackupPath("backups")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(abs) {
		t.Errorf("expected absolute path, got %q", abs)
	}
}

func TestValidateArchivePath_RejectsUnknownExtension(t *testing.T) {
	if _, err := ValidateArchivePath("/backups/archive.exe"); err == nil {
		t.Error("expected error for non-archive extension")
	}
}

func TestValidateArchivePath_AcceptsKnownExtensions(t *testing.T) {
	for _, name := range []string{"archive.dump", "archive.sql", "archive.tar", "archive.tar.gz"} {
		if _, err := ValidateArchivePath("/backups/" + name); err != nil {
			t.Errorf("ValidateArchivePath(%q): unexpected error: %v", name, err)
		}
	}
}

func TestChecksumFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(path, []byte("fleet backup payload"), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	sum, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile: %v", err)
	}
	if err := VerifyChecksum(path, sum); err != nil {
		t.Errorf("VerifyChecksum with correct sum: %v", err)
	}
	if err := VerifyChecksum(path, "not-the-real-checksum"); err == nil {
		t.Error("expected VerifyChecksum to fail against a wrong checksum")
	}
}

func TestSaveAndLoadChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	sum, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile: %v", err)
	}
	if err := SaveChecksum(path, sum); err != nil {
		t.Fatalf("SaveChecksum: %v", err)
	}

	loaded, err := LoadChecksum(path)
	if err != nil {
		t.Fatalf("LoadChecksum: %v", err)
	}
	if loaded != sum {
		t.Errorf("LoadChecksum = %q, want %q", loaded, sum)
	}

	if err := LoadAndVerifyChecksum(path); err != nil {
		t.Errorf("LoadAndVerifyChecksum: %v", err)
	}
}

func TestLoadAndVerifyChecksum_MissingSidecarIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	// No .sha256 sidecar written: verification should be a no-op, not an error.
	if err := LoadAndVerifyChecksum(path); err != nil {
		t.Errorf("expected no error when the .sha256 sidecar is absent, got %v", err)
	}
}

func TestLoadAndVerifyChecksum_CorruptedArchiveFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")
	if err := os.WriteFile(path, []byte("original payload"), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	sum, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile: %v", err)
	}
	if err := SaveChecksum(path, sum); err != nil {
		t.Fatalf("SaveChecksum: %v", err)
	}

	if err := os.WriteFile(path, []byte("tampered payload"), 0644); err != nil {
		t.Fatalf("rewrite archive: %v", err)
	}

	if err := LoadAndVerifyChecksum(path); err == nil {
		t.Error("expected checksum mismatch after the archive was modified")
	}
}

func TestRateLimiter_FirstAttemptAllowed(t *testing.T) {
	rl := NewRateLimiter(3, nil)
	if err := rl.CheckAndWait("db.internal:5432"); err != nil {
		t.Errorf("first attempt should be allowed, got %v", err)
	}
}

func TestRateLimiter_RecordSuccessResetsCounter(t *testing.T) {
	rl := NewRateLimiter(3, nil)
	host := "db.internal:5432"
	_ = rl.CheckAndWait(host)
	rl.RecordFailure(host)
	rl.RecordFailure(host)
	rl.RecordSuccess(host)

	count, _, limited := rl.GetStatus(host)
	if count != 0 {
		t.Errorf("expected attempt count reset to 0 after success, got %d", count)
	}
	if limited {
		t.Error("expected host to not be rate-limited immediately after a recorded success")
	}
}

func TestRateLimiter_MaxRetriesExceeded(t *testing.T) {
	rl := NewRateLimiter(2, nil)
	host := "db.internal:5432"
	_ = rl.CheckAndWait(host) // count=1, allowed
	rl.RecordFailure(host)    // count=2, next delay scheduled
	if err := rl.CheckAndWait(host); err == nil {
		t.Error("expected error once max retries is reached")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(3, nil)
	rl.RecordFailure("stale.internal:5432")
	rl.attempts["stale.internal:5432"].lastAttempt = time.Now().Add(-time.Hour)
	rl.Cleanup()
	if _, _, limited := rl.GetStatus("stale.internal:5432"); limited {
		t.Error("expected stale entry to be cleaned up and report unlimited")
	}
}

func TestPrivilegeChecker_NonRootSucceeds(t *testing.T) {
	pc := NewPrivilegeChecker(logger.NewNullLogger())
	isRoot, _ := pc.isRunningAsRoot()
	if isRoot {
		t.Skip("test process is running as root/admin; the non-root path of CheckAndWarn cannot be exercised")
	}
	if err := pc.CheckAndWarn(false); err != nil {
		t.Errorf("expected no error for a non-privileged user, got %v", err)
	}
}

func TestPrivilegeChecker_Recommendations(t *testing.T) {
	pc := NewPrivilegeChecker(logger.NewNullLogger())
	if len(pc.GetSecurityRecommendations()) == 0 {
		t.Error("expected a non-empty set of security recommendations")
	}
}

func TestRetentionPolicy_DisabledIsNoOp(t *testing.T) {
	dir := t.TempDir()
	rp := NewRetentionPolicy(0, 5, logger.NewNullLogger())
	deleted, freed, err := rp.CleanupOldBackups(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 || freed != 0 {
		t.Errorf("expected no-op cleanup when RetentionDays <= 0, got deleted=%d freed=%d", deleted, freed)
	}
}

func TestRetentionPolicy_KeepsMinimumBackups(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -365)
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "archive"+string(rune('a'+i))+".tar.gz")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatalf("write archive: %v", err)
		}
		if err := os.Chtimes(name, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	rp := NewRetentionPolicy(30, 5, logger.NewNullLogger())
	deleted, _, err := rp.CleanupOldBackups(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected no deletions while archive count (3) is below MinBackups (5), got %d", deleted)
	}
}

func TestRetentionPolicy_RemovesOldArchivesAboveMinimum(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -365)
	recent := time.Now()

	for i := 0; i < 6; i++ {
		name := filepath.Join(dir, "archive"+string(rune('a'+i))+".tar.gz")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatalf("write archive: %v", err)
		}
		ts := old
		if i >= 3 {
			ts = recent
		}
		if err := os.Chtimes(name, ts, ts); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	rp := NewRetentionPolicy(30, 2, logger.NewNullLogger())
	deleted, freed, err := rp.CleanupOldBackups(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted == 0 {
		t.Error("expected at least one old archive to be removed")
	}
	if freed <= 0 {
		t.Error("expected freed byte count to be positive when archives were removed")
	}

	remaining, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(remaining) < rp.MinBackups {
		t.Errorf("expected at least MinBackups=%d archives to remain, found %d", rp.MinBackups, len(remaining))
	}
}
