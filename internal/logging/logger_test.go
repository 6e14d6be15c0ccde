package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Info("watcher started",
		String(FieldComponent, "watcher"),
		String(FieldPath, "/tmp/root"),
		Int("dirs", 3),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO watcher: watcher started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "path=/tmp/root") || !strings.Contains(line, "dirs=3") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar))

	logger.Warn("problem", Error(errors.New("stat failed: no such file")))
	if !strings.Contains(buf.String(), `error="stat failed: no such file"`) {
		t.Fatalf("expected quoted error, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled at any level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
