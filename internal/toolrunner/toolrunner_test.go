package toolrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"dbbackup/internal/errs"
	"dbbackup/internal/logger"
)

func TestRun_MissingBinary(t *testing.T) {
	r := New(logger.NewNullLogger())
	_, err := r.Run(context.Background(), Invocation{Binary: "no-such-binary-anywhere"})
	var toolMissing *errs.ToolMissing
	if !errors.As(err, &toolMissing) {
		t.Errorf("expected *errs.ToolMissing, got %T: %v", err, err)
	}
}

func TestRun_SuccessfulExit(t *testing.T) {
	r := New(logger.NewNullLogger())
	out, err := r.Run(context.Background(), Invocation{Binary: "true", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != 0 || out.TimedOut {
		t.Errorf("expected a clean exit, got %+v", out)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := New(logger.NewNullLogger())
	_, err := r.Run(context.Background(), Invocation{Binary: "false", Timeout: time.Second})
	var toolFailed *errs.ToolFailed
	if !errors.As(err, &toolFailed) {
		t.Fatalf("expected *errs.ToolFailed for a non-zero exit, got %T: %v", err, err)
	}
	if toolFailed.TimedOut {
		t.Error("a plain non-zero exit should not be reported as a timeout")
	}
}

func TestRun_TimesOut(t *testing.T) {
	r := New(logger.NewNullLogger())
	_, err := r.Run(context.Background(), Invocation{Binary: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond})
	var toolFailed *errs.ToolFailed
	if !errors.As(err, &toolFailed) {
		t.Fatalf("expected *errs.ToolFailed, got %T: %v", err, err)
	}
	if !toolFailed.TimedOut {
		t.Error("expected TimedOut to be true once the invocation's timeout elapses")
	}
}
