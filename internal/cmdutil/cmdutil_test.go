package cmdutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"interdiag/internal/config"
)

func TestSetupRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "loud")
	var stderr bytes.Buffer
	if _, _, err := Setup(&stderr); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSetupLogsToStderr(t *testing.T) {
	t.Setenv(config.EnvLogFormat, "json")
	var stderr bytes.Buffer
	_, logger, err := Setup(&stderr)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Warn("ignoring line", "file", "a.csv")
	if !strings.Contains(stderr.String(), `"file":"a.csv"`) {
		t.Fatalf("expected structured log line, got %q", stderr.String())
	}
}

func TestFail(t *testing.T) {
	var stderr bytes.Buffer
	if code := Fail(&stderr, "decomp-table", errors.New("boom")); code != ExitFatal {
		t.Fatalf("unexpected exit code %d", code)
	}
	if stderr.String() != "decomp-table: boom\n" {
		t.Fatalf("unexpected message %q", stderr.String())
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "a,b\n")
		return err
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "a,b\n" {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}

	boom := errors.New("render failed")
	if err := WriteFile(path, func(io.Writer) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected render error, got %v", err)
	}
	if err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.csv"), func(io.Writer) error { return nil }); err == nil {
		t.Fatal("expected create error")
	}
}
