// Package confblock materializes named, marker-delimited configuration
// blocks into shared files. Re-running a write replaces the block rather
// than appending, so content outside the markers (operator edits) is
// never disturbed and repeated applies are byte-identical.
package confblock

import (
	"bytes"
	"os"
	"path/filepath"
)

// StartMarker returns the exact literal start marker for name.
func StartMarker(name string) string { return "# === " + name + " Start ===" }

// EndMarker returns the exact literal end marker for name.
func EndMarker(name string) string { return "# === " + name + " End ===" }

// WriteBlock replaces the marker-delimited block named markerName in the
// file at path with body, creating the file when absent. An empty body
// removes the block without re-adding it. The new content is assembled
// fully in memory and moved onto path with a single rename so the target
// is never observed half-written.
func WriteBlock(path, markerName string, body []byte) error {
	existing, mode, err := readWithMode(path)
	if err != nil {
		return err
	}
	content := stripBlock(existing, markerName)
	if len(body) > 0 {
		if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
			content = append(content, '\n')
		}
		content = append(content, []byte(StartMarker(markerName))...)
		content = append(content, '\n')
		content = append(content, body...)
		if !bytes.HasSuffix(body, []byte("\n")) {
			content = append(content, '\n')
		}
		content = append(content, []byte(EndMarker(markerName))...)
		content = append(content, '\n')
	}
	return writeAtomic(path, content, mode)
}

// RemoveBlock removes the named block, keeping everything else intact.
func RemoveBlock(path, markerName string) error {
	return WriteBlock(path, markerName, nil)
}

// HasBlock reports whether the file currently carries the named block.
func HasBlock(path, markerName string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte(StartMarker(markerName)))
}

// ExtractBlock returns the body between the markers, without the markers
// themselves, or nil when the block is absent.
func ExtractBlock(path, markerName string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	start := []byte(StartMarker(markerName))
	end := []byte(EndMarker(markerName))
	i := bytes.Index(data, start)
	if i < 0 {
		return nil
	}
	rest := data[i+len(start):]
	j := bytes.Index(rest, end)
	if j < 0 {
		return nil
	}
	return bytes.TrimPrefix(rest[:j], []byte("\n"))
}

// stripBlock removes every line from the start marker through the end
// marker inclusive. Lines outside the block pass through unchanged.
func stripBlock(data []byte, markerName string) []byte {
	if len(data) == 0 {
		return nil
	}
	start := []byte(StartMarker(markerName))
	end := []byte(EndMarker(markerName))
	var out bytes.Buffer
	inBlock := false
	for line := range bytes.Lines(data) {
		trimmed := bytes.TrimRight(line, "\n")
		if !inBlock && bytes.Equal(trimmed, start) {
			inBlock = true
			continue
		}
		if inBlock {
			if bytes.Equal(trimmed, end) {
				inBlock = false
			}
			continue
		}
		out.Write(line)
	}
	return out.Bytes()
}

func readWithMode(path string) ([]byte, os.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0o644, nil
		}
		return nil, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return data, info.Mode().Perm(), nil
}

func writeAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
