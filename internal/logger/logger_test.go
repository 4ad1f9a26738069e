package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleOnly(t *testing.T) {
	log, closer := New(Config{Level: "info"})
	if log == nil {
		t.Fatal("nil logger")
	}
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosttune.log")
	log, closer := New(Config{Path: path, Level: "debug"})
	log.Info("module applied", "module", "network")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if entry["msg"] != "module applied" || entry["module"] != "network" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosttune.log")
	log, closer := New(Config{Path: path, Level: "warn"})
	log.Debug("invisible")
	log.Warn("visible")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("expected exactly one JSON line: %v\n%s", err, data)
	}
	if entry["msg"] != "visible" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestFanoutEnabled(t *testing.T) {
	a := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	b := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	fan := fanoutHandler{handlers: []slog.Handler{a, b}}
	if !fan.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("fanout must be enabled when any handler is")
	}
}
