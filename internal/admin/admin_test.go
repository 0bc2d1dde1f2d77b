package admin

import (
	"context"
	"errors"
	"testing"

	"dbbackup/internal/errs"
)

func TestQuoteIdentifier_Valid(t *testing.T) {
	got, err := quoteIdentifier("fleet_db")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `"fleet_db"` {
		t.Errorf("quoteIdentifier(%q) = %q", "fleet_db", got)
	}
}

func TestQuoteIdentifier_RejectsInjection(t *testing.T) {
	if _, err := quoteIdentifier(`fleet"; DROP TABLE users; --`); err == nil {
		t.Error("expected quoteIdentifier to reject an identifier containing disallowed characters")
	}
}

func TestDrop_RefusesProtectedDatabase(t *testing.T) {
	m := &Manager{}
	err := m.Drop(context.Background(), ProtectedDatabase)
	var protectedErr *errs.ProtectedDB
	if !errors.As(err, &protectedErr) {
		t.Fatalf("expected *errs.ProtectedDB, got %T: %v", err, err)
	}
}
