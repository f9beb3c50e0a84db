package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/video"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id       TEXT PRIMARY KEY,
    source_kind  TEXT NOT NULL,
    source_id    TEXT NOT NULL,
    started_at   TEXT NOT NULL,
    finished_at  TEXT NOT NULL,
    written      INTEGER NOT NULL,
    failed       INTEGER NOT NULL,
    aborted      INTEGER NOT NULL,
    abort_cause  TEXT
);
CREATE TABLE IF NOT EXISTS videos (
    run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    reference_id TEXT NOT NULL,
    name         TEXT NOT NULL,
    state        TEXT NOT NULL,
    output_path  TEXT,
    error_kind   TEXT,
    cause        TEXT,
    duration_ms  INTEGER NOT NULL,
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Store persists run reports in SQLite
type Store struct {
	db   *sql.DB
	path string
}

// VideoRecord is one persisted video outcome
type VideoRecord struct {
	ReferenceID string
	Name        string
	State       pipeline.State
	OutputPath  string
	Kind        pipeline.ErrorKind
	Cause       string
	Duration    time.Duration
}

// Open initializes or connects to the ledger database
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a report and its per-video outcomes in one transaction
func (s *Store) Record(ctx context.Context, report *pipeline.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var abortCause any
	if report.AbortErr != nil {
		abortCause = report.AbortErr.Error()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (
            run_id, source_kind, source_id, started_at, finished_at,
            written, failed, aborted, abort_cause
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		string(report.Config.SourceKind),
		report.Config.SourceID,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Written(),
		report.Failed(),
		report.Aborted,
		abortCause,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("clear videos: %w", err)
	}

	for i, o := range report.Outcomes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO videos (
                run_id, position, reference_id, name, state,
                output_path, error_kind, cause, duration_ms
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID,
			i,
			o.Reference.ID,
			o.Reference.Stem(),
			string(o.State),
			nullableString(o.OutputPath),
			nullableString(string(o.Kind)),
			nullableString(o.Cause()),
			o.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert video %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]pipeline.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source_kind, source_id, started_at, finished_at, written, failed, aborted
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []pipeline.RunSummary
	for rows.Next() {
		var (
			r                 pipeline.RunSummary
			kind              string
			started, finished string
		)
		if err := rows.Scan(&r.RunID, &kind, &r.SourceID, &started, &finished, &r.Written, &r.Failed, &r.Aborted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.SourceKind = video.SourceKind(kind)
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// Run returns one recorded run and its abort cause, if any
func (s *Store) Run(ctx context.Context, runID string) (pipeline.RunSummary, string, error) {
	var (
		r                 pipeline.RunSummary
		kind              string
		started, finished string
		cause             sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, source_kind, source_id, started_at, finished_at, written, failed, aborted, abort_cause
         FROM runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &kind, &r.SourceID, &started, &finished, &r.Written, &r.Failed, &r.Aborted, &cause)
	if errors.Is(err, sql.ErrNoRows) {
		return r, "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return r, "", fmt.Errorf("query run: %w", err)
	}
	r.SourceKind = video.SourceKind(kind)
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, cause.String, nil
}

// Videos returns the recorded outcomes of one run in source order
func (s *Store) Videos(ctx context.Context, runID string) ([]VideoRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reference_id, name, state, output_path, error_kind, cause, duration_ms
         FROM videos WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []VideoRecord
	for rows.Next() {
		var (
			v                   VideoRecord
			state               string
			output, kind, cause sql.NullString
			ms                  int64
		)
		if err := rows.Scan(&v.ReferenceID, &v.Name, &state, &output, &kind, &cause, &ms); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		v.State = pipeline.State(state)
		v.OutputPath = output.String
		v.Kind = pipeline.ErrorKind(kind.String)
		v.Cause = cause.String
		v.Duration = time.Duration(ms) * time.Millisecond
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var (
	_ pipeline.RunRecorder = (*Store)(nil)
	_ pipeline.RunHistory  = (*Store)(nil)
)
