package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json"}, &buf)

	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered: %s", out)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if entry["msg"] != "shown" || entry["k"] != "v" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "text"}, &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithRunID(ctx, "run-1")
	FromContext(ctx, base).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "run_id=run-1") {
		t.Fatalf("expected ids in output, got %q", out)
	}
}

func TestFromContextEmpty(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected non-nil logger")
	}
}
