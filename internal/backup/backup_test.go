package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOriginalCreatedOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf")
	if err := os.WriteFile(path, []byte("v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore()
	if err := s.Backup(path); err != nil {
		t.Fatalf("first backup: %v", err)
	}

	// mutate and back up again: original must keep the first-ever content
	if err := os.WriteFile(path, []byte("v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Backup(path); err != nil {
		t.Fatalf("second backup: %v", err)
	}
	orig, _ := os.ReadFile(path + ".original")
	if string(orig) != "v1\n" {
		t.Fatalf("original overwritten: %q", orig)
	}
	last, _ := os.ReadFile(path + ".backup")
	if string(last) != "v2\n" {
		t.Fatalf("last-run backup stale: %q", last)
	}
}

func TestRestoreOriginalAndLastRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf")
	if err := os.WriteFile(path, []byte("first\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	s := NewStore()
	if err := s.Backup(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("second\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := s.Backup(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("third\n"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := s.Restore(path, LastRun); err != nil {
		t.Fatalf("restore last: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second\n" {
		t.Fatalf("restore last = %q", data)
	}

	if err := s.Restore(path, Original); err != nil {
		t.Fatalf("restore original: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "first\n" {
		t.Fatalf("restore original = %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("mode not preserved: %v", info.Mode())
	}
}

func TestRestoreWithoutBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf")
	s := NewStore()
	err := s.Restore(path, Original)
	if !errors.Is(err, ErrNoBackup) {
		t.Fatalf("want ErrNoBackup, got %v", err)
	}
}

func TestMissingFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newfile")
	s := NewStore()

	// first backup of a missing file creates it empty
	if err := s.Backup(path); err != nil {
		t.Fatalf("backup of missing file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 0 {
		t.Fatalf("live file should exist empty: data=%q err=%v", data, err)
	}

	// simulate an apply, then revert to original: file must be gone
	if err := os.WriteFile(path, []byte("applied\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Restore(path, Original); err != nil {
		t.Fatalf("restore original: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not exist after restoring an absent original, err=%v", err)
	}
}

func TestHasOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf")
	s := NewStore()
	if s.HasOriginal(path) {
		t.Fatal("HasOriginal before any backup")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Backup(path); err != nil {
		t.Fatal(err)
	}
	if !s.HasOriginal(path) {
		t.Fatal("HasOriginal after backup")
	}
}
