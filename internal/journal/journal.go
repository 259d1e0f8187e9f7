// Package journal keeps a local SQLite record of every pass: when it ran,
// with which inputs, the report it produced and every file it renamed. A
// nil *Journal is valid and records nothing.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/paramcascade/internal/model"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Run is one journaled pass.
type Run struct {
	ID         string
	Kind       string
	Project    string
	Prefix     string
	Params     model.Params
	StartedAt  time.Time
	FinishedAt *time.Time
	Success    *bool
	// Report is the JSON encoded report, empty until the run finished.
	Report string
}

// Rename is one journaled file rename.
type Rename struct {
	RunID string
	From  string
	To    string
	At    time.Time
}

// Journal is a handle on the journal database.
type Journal struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path and migrates its schema.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	// One CAD application, one writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db, now: time.Now}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			kind        TEXT    NOT NULL,
			project     TEXT    NOT NULL,
			prefix      TEXT    NOT NULL DEFAULT '',
			h           INTEGER NOT NULL DEFAULT 0,
			b1          INTEGER NOT NULL DEFAULT 0,
			l1          INTEGER NOT NULL DEFAULT 0,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			success     INTEGER,
			report      TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS renames (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT    NOT NULL REFERENCES runs(id),
			src     TEXT    NOT NULL,
			dst     TEXT    NOT NULL,
			at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_renames_run ON renames(run_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Begin records the start of a pass and returns its run id.
func (j *Journal) Begin(ctx context.Context, kind, project, prefix string, params model.Params) (string, error) {
	if j == nil {
		return "", nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, project, prefix, h, b1, l1, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, project, prefix, params.H, params.B1, params.L1, j.now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("journal: begin %s: %w", kind, err)
	}
	return id, nil
}

// Finish stores the report of a pass. report is encoded as JSON.
func (j *Journal) Finish(ctx context.Context, runID string, success bool, report any) error {
	if j == nil || runID == "" {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("journal: encode report: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, report = ? WHERE id = ?`,
		j.now().UnixMilli(), success, string(data), runID,
	)
	if err != nil {
		return fmt.Errorf("journal: finish %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: finish: unknown run %s", runID)
	}
	return nil
}

// RecordRename stores one executed rename.
func (j *Journal) RecordRename(ctx context.Context, runID, from, to string) error {
	if j == nil || runID == "" {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO renames (run_id, src, dst, at) VALUES (?, ?, ?, ?)`,
		runID, from, to, j.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal: record rename: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, project, prefix, h, b1, l1, started_at, finished_at, success, report
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			success  sql.NullBool
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.Project, &r.Prefix, &r.Params.H, &r.Params.B1, &r.Params.L1,
			&started, &finished, &success, &r.Report); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			r.FinishedAt = &t
		}
		if success.Valid {
			ok := success.Bool
			r.Success = &ok
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Renames returns the renames of one run in execution order.
func (j *Journal) Renames(ctx context.Context, runID string) ([]Rename, error) {
	if j == nil {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, src, dst, at FROM renames WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: list renames: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Rename
	for rows.Next() {
		var (
			r  Rename
			at int64
		)
		if err := rows.Scan(&r.RunID, &r.From, &r.To, &at); err != nil {
			return nil, fmt.Errorf("journal: scan rename: %w", err)
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}
