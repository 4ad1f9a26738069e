// Package record persists the outcome of orchestrator runs. The JSON
// RunRecord file at a fixed path is the sole cross-invocation memory;
// its absence means the tool has never run on this host.
package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion of the RunRecord file format.
const SchemaVersion = 1

// DefaultPath is where the RunRecord lives unless configured otherwise.
const DefaultPath = "/var/lib/hosttune/run.json"

// SystemInfo is a small snapshot of host facts taken at the end of a run.
type SystemInfo struct {
	KernelRelease     string `json:"kernel_release"`
	CongestionControl string `json:"congestion_control"`
	SSHPort           string `json:"ssh_port"`
}

// ModuleOutcome is the per-module result embedded in a RunRecord.
type ModuleOutcome struct {
	Name     string   `json:"name"`
	Result   string   `json:"result"` // succeeded | failed | skipped
	Kind     string   `json:"kind,omitempty"`
	Error    string   `json:"error,omitempty"`
	Files    []string `json:"files,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// RunRecord summarizes one orchestrator invocation. It is replaced
// wholesale on the next run and never deleted automatically.
type RunRecord struct {
	SchemaVersion int             `json:"schema_version"`
	ToolVersion   string          `json:"tool_version"`
	Timestamp     time.Time       `json:"timestamp"`
	Mode          string          `json:"mode"`
	Interrupted   bool            `json:"interrupted,omitempty"`
	Succeeded     []string        `json:"succeeded"`
	Failed        []string        `json:"failed"`
	Outcomes      []ModuleOutcome `json:"outcomes"`
	System        SystemInfo      `json:"system"`
}

// Load reads the RunRecord at path. A missing file is not an error:
// it returns (nil, nil), meaning "never run before".
func Load(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save writes the record to path via temp file + rename so a crash never
// leaves a truncated record behind.
func (r *RunRecord) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".run-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// SucceededSet returns the succeeded module names as a set for quick
// lookup when deriving interactive defaults.
func (r *RunRecord) SucceededSet() map[string]bool {
	set := make(map[string]bool, len(r.Succeeded))
	for _, name := range r.Succeeded {
		set[name] = true
	}
	return set
}
