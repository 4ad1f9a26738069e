// Package backup preserves the pre-change state of managed files.
// For every managed path P it keeps two artifacts on the same filesystem:
// P.original, snapshotted once ever before the first apply, and P.backup,
// overwritten with the live content before every apply.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	originalSuffix = ".original"
	lastRunSuffix  = ".backup"
	// marks that the live file did not exist before the first apply,
	// so restoring the original means deleting the file
	absentSuffix = ".original.absent"
)

// ErrNoBackup is returned by Restore when the requested backup was never
// created, e.g. revert called before any apply.
var ErrNoBackup = errors.New("no backup found")

// Which selects the backup generation to restore.
type Which int

const (
	// Original is the first-ever snapshot, taken before the first apply.
	Original Which = iota
	// LastRun is the snapshot taken before the most recent apply.
	LastRun
)

// Store manages backup artifacts next to the files they shadow.
type Store struct{}

func NewStore() *Store { return &Store{} }

// Backup snapshots path before a mutation. The original snapshot is taken
// at most once, ever; the last-run snapshot is refreshed on every call.
// A missing live file is created empty first so downstream writers have a
// stable target, and its prior absence is recorded so Restore(Original)
// can delete it again.
func (s *Store) Backup(path string) error {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if !exists(path + originalSuffix) {
			if err := touch(path + absentSuffix); err != nil {
				return err
			}
		}
		if err := touch(path); err != nil {
			return err
		}
	}
	if !exists(path + originalSuffix) {
		if err := copyFile(path, path+originalSuffix); err != nil {
			return fmt.Errorf("backup original of %s: %w", path, err)
		}
	}
	if err := copyFile(path, path+lastRunSuffix); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}

// Restore copies the chosen backup over the live path. When the original
// snapshot records that the file did not exist before the first apply,
// restoring Original removes the live file instead.
func (s *Store) Restore(path string, which Which) error {
	src := path + lastRunSuffix
	if which == Original {
		src = path + originalSuffix
	}
	if !exists(src) {
		return fmt.Errorf("%s: %w", src, ErrNoBackup)
	}
	if which == Original && exists(path+absentSuffix) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return copyFile(src, path)
}

// HasOriginal reports whether the first-ever snapshot exists for path.
func (s *Store) HasOriginal(path string) bool { return exists(path + originalSuffix) }

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// copyFile copies src to dst byte-for-byte, preserving mode bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
