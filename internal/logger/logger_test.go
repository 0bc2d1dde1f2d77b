package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_LevelsAndFormats(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unrecognized"} {
		for _, format := range []string{"json", "text"} {
			l := New(level, format)
			if l == nil {
				t.Fatalf("New(%q, %q) returned nil", level, format)
			}
			// Exercise every method; a NullLogger-style no-panic smoke test,
			// since asserting exact slog output would couple the test to a
			// formatting detail rather than the logger's behavior.
			l.Debug("debug message")
			l.Info("info message", "key", "value")
			l.Warn("warn message")
			l.Error("error message")
			l.Time("timed step")

			op := l.StartOperation("restore")
			op.Update("in progress")
			op.Complete("done")
			op.Fail("oops")
		}
	}
}

func TestFileLogger_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dbbackup.log")

	l, err := FileLogger("info", "text", path)
	if err != nil {
		t.Fatalf("FileLogger: %v", err)
	}
	l.Info("hello from the fleet backup run")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected the log file to contain the logged message")
	}
}

func TestNullLogger_NeverPanics(t *testing.T) {
	l := NewNullLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	l.Time("x")
	op := l.StartOperation("noop")
	op.Update("x")
	op.Complete("x")
	op.Fail("x")
}
