// Package runstore keeps the SQLite index of ingested runs, applied patches
// and supervisor decisions.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("not found")

// fixed width so timestamps sort lexically
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides SQLite-backed persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection: SQLite serialises writers anyway and :memory: is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpsertRun inserts or replaces the index row of a run
func (s *Store) UpsertRun(ctx context.Context, r domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, job_name, branch, commit_sha, status, error_type, confidence, run_dir, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			job_name = excluded.job_name,
			branch = excluded.branch,
			commit_sha = excluded.commit_sha,
			status = excluded.status,
			error_type = excluded.error_type,
			confidence = excluded.confidence,
			run_dir = excluded.run_dir,
			processed_at = excluded.processed_at
	`,
		r.RunID,
		r.JobName,
		r.Branch,
		r.Commit,
		r.Status,
		string(r.ErrorType),
		string(r.Confidence),
		r.RunDir,
		formatTime(r.ProcessedAt),
	)
	return err
}

const runColumns = `run_id, job_name, branch, commit_sha, status, error_type, confidence, run_dir, processed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunRecord, error) {
	var (
		r                     domain.RunRecord
		errorType, confidence string
		processedAt           string
		jobName, branch, sha  sql.NullString
	)
	if err := row.Scan(&r.RunID, &jobName, &branch, &sha, &r.Status, &errorType, &confidence, &r.RunDir, &processedAt); err != nil {
		return nil, err
	}
	r.JobName = jobName.String
	r.Branch = branch.String
	r.Commit = sha.String
	r.ErrorType = domain.ErrorType(errorType)
	r.Confidence = domain.Confidence(confidence)
	r.ProcessedAt = parseTime(processedAt)
	return &r, nil
}

// GetRun retrieves a run by normalized id
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// ListOptions specifies filters for listing runs
type ListOptions struct {
	Status    string
	ErrorType domain.ErrorType
	Before    time.Time
	Limit     int
}

// ListRuns returns runs matching opts, newest first
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]*domain.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.ErrorType != "" {
		query += " AND error_type = ?"
		args = append(args, string(opts.ErrorType))
	}
	if !opts.Before.IsZero() {
		query += " AND processed_at < ?"
		args = append(args, formatTime(opts.Before))
	}

	query += " ORDER BY processed_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run from the index
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	return err
}

// CountByErrorType returns the number of indexed runs per error type
func (s *Store) CountByErrorType(ctx context.Context) (map[domain.ErrorType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT error_type, COUNT(*) FROM runs GROUP BY error_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ErrorType]int)
	for rows.Next() {
		var et string
		var n int
		if err := rows.Scan(&et, &n); err != nil {
			return nil, err
		}
		counts[domain.ErrorType(et)] = n
	}
	return counts, rows.Err()
}
