package runstore

import (
	"context"
	"database/sql"

	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
)

// HasPatch reports whether signature was recorded for target
func (s *Store) HasPatch(ctx context.Context, target, signature string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM patches WHERE target = ? AND signature = ?`,
		target, signature).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordPatch stores a ledger entry. Recording the same target and signature
// twice keeps the first entry.
func (s *Store) RecordPatch(ctx context.Context, e domain.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patches (target, signature, source, run_id, applied_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(target, signature) DO NOTHING
	`, e.Target, e.Signature, e.Source, e.RunID, formatTime(e.AppliedAt))
	return err
}

// ListPatches returns ledger entries, optionally restricted to one target
func (s *Store) ListPatches(ctx context.Context, target string) ([]domain.LedgerEntry, error) {
	query := `SELECT target, signature, source, run_id, applied_at FROM patches`
	var args []any
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e           domain.LedgerEntry
			source, run sql.NullString
			appliedAt   string
		)
		if err := rows.Scan(&e.Target, &e.Signature, &source, &run, &appliedAt); err != nil {
			return nil, err
		}
		e.Source = source.String
		e.RunID = run.String
		e.AppliedAt = parseTime(appliedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordDecision stores a supervisor decision
func (s *Store) RecordDecision(ctx context.Context, d domain.DecisionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, decision, reason, error_type, decided_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID, string(d.Decision), d.Reason, string(d.ErrorType), formatTime(d.DecidedAt))
	return err
}

// ListDecisions returns the most recent decisions first
func (s *Store) ListDecisions(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision, reason, error_type, decided_at
		FROM decisions ORDER BY decided_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var (
			d                 domain.DecisionRecord
			decision          string
			reason, errorType sql.NullString
			decidedAt         string
		)
		if err := rows.Scan(&d.ID, &decision, &reason, &errorType, &decidedAt); err != nil {
			return nil, err
		}
		d.Decision = domain.Decision(decision)
		d.Reason = reason.String
		d.ErrorType = domain.ErrorType(errorType.String)
		d.DecidedAt = parseTime(decidedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}
