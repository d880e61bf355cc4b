package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eventbot/internal/config"
)

func TestSecretsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	log.Info("starting", "api_key", "AIzaSyExampleExampleExample1234", "auth", "Bearer abcdefghijklmnop", "docs", "documents")
	out := buf.String()
	if strings.Contains(out, "ExampleExample") || strings.Contains(out, "efghijkl") {
		t.Fatalf("secret leaked: %s", out)
	}
	if !strings.Contains(out, `"api_key":"AIza***1234"`) {
		t.Errorf("expected redacted key: %s", out)
	}
	if !strings.Contains(out, `"docs":"documents"`) {
		t.Errorf("plain values must survive: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "warn"}, &buf)
	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestOpenWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "eventbot.log")
	log, closeFn, err := Open(config.LogConfig{Level: "info", File: path}, os.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hello file")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("log file missing record: %s", data)
	}
}
