package record

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sample() *RunRecord {
	return &RunRecord{
		SchemaVersion: SchemaVersion,
		ToolVersion:   "0.1.0",
		Timestamp:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Mode:          "apply",
		Succeeded:     []string{"network", "ssh-security"},
		Failed:        []string{"zram"},
		Outcomes: []ModuleOutcome{
			{Name: "network", Result: "succeeded", Duration: "120ms"},
			{Name: "ssh-security", Result: "succeeded"},
			{Name: "zram", Result: "failed", Kind: "service_unready", Error: "zramswap not ready"},
		},
		System: SystemInfo{KernelRelease: "6.8.0", CongestionControl: "bbr", SSHPort: "22"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "run.json")
	rec := sample()
	if err := rec.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil {
		t.Fatal("loaded nil")
	}
	if loaded.SchemaVersion != SchemaVersion || loaded.Mode != "apply" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if !loaded.Timestamp.Equal(rec.Timestamp) {
		t.Fatalf("timestamp = %v", loaded.Timestamp)
	}
	if len(loaded.Outcomes) != 3 || loaded.Outcomes[2].Kind != "service_unready" {
		t.Fatalf("outcomes = %+v", loaded.Outcomes)
	}
	if loaded.System.CongestionControl != "bbr" {
		t.Fatalf("system = %+v", loaded.System)
	}
}

func TestLoadMissingMeansNeverRun(t *testing.T) {
	rec, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("rec = %+v, want nil", rec)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("corrupt record must error, not be silently ignored")
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	rec := sample()
	if err := rec.Save(path); err != nil {
		t.Fatal(err)
	}
	rec.Mode = "revert"
	if err := rec.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Mode != "revert" {
		t.Fatalf("mode = %s", loaded.Mode)
	}
	// no temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".run-") {
			t.Fatalf("stale temp file %s", e.Name())
		}
	}
}

func TestSucceededSet(t *testing.T) {
	set := sample().SucceededSet()
	if !set["network"] || !set["ssh-security"] || set["zram"] {
		t.Fatalf("set = %v", set)
	}
}
