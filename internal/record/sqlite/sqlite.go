// Package sqlite appends orchestrator run history to a SQLite database
// (modernc.org/sqlite driver, CGO-free). The JSON RunRecord stays the
// authoritative cross-invocation state; this store is an append-only
// audit trail queryable from the CLI and the HTTP API.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nnversace/hosttune/internal/record"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the history database at path. Use ":memory:"
// for an in-memory database.
func New(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			mode TEXT NOT NULL,
			tool_version TEXT NOT NULL,
			interrupted BOOLEAN NOT NULL,
			succeeded TEXT NOT NULL,
			failed TEXT NOT NULL,
			outcomes TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_history_ts ON run_history(timestamp);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append records one finished run.
func (s *Store) Append(ctx context.Context, rec record.RunRecord) error {
	outcomes, err := json.Marshal(rec.Outcomes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_history(timestamp, mode, tool_version, interrupted, succeeded, failed, outcomes)
		VALUES(?, ?, ?, ?, ?, ?, ?);`,
		rec.Timestamp.UTC(), rec.Mode, rec.ToolVersion, rec.Interrupted,
		strings.Join(rec.Succeeded, ","), strings.Join(rec.Failed, ","), string(outcomes))
	return err
}

// Entry is one historical run as returned by Recent.
type Entry struct {
	ID          int64                  `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Mode        string                 `json:"mode"`
	ToolVersion string                 `json:"tool_version"`
	Interrupted bool                   `json:"interrupted"`
	Succeeded   []string               `json:"succeeded"`
	Failed      []string               `json:"failed"`
	Outcomes    []record.ModuleOutcome `json:"outcomes"`
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, mode, tool_version, interrupted, succeeded, failed, outcomes
		FROM run_history ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var succeeded, failed, outcomes string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Mode, &e.ToolVersion, &e.Interrupted, &succeeded, &failed, &outcomes); err != nil {
			return nil, err
		}
		e.Succeeded = splitList(succeeded)
		e.Failed = splitList(failed)
		if err := json.Unmarshal([]byte(outcomes), &e.Outcomes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
