package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/runbox/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each pooled connection to ":memory:" would get its own empty database,
	// and finalizers record runs from several goroutines.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const runColumns = `id, language, reason, exit_code, output, error, started_at, finished_at`

// timeLayout is fixed-width so ORDER BY on the text column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *SQLiteStore) RecordRun(ctx context.Context, r *storage.Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Language, string(r.Reason), r.ExitCode, r.Output, r.Error,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	// Try exact match first, then prefix match
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if r, err := scanRun(row); err == nil {
		return r, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous run prefix %q matches %d runs", id, len(matches))
	}
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts storage.RunListOptions) ([]storage.Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any

	if opts.Reason != "" {
		query += ` WHERE reason = ?`
		args = append(args, string(opts.Reason))
	}

	query += ` ORDER BY finished_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []storage.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	// Resolve prefix first
	r, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, r.ID)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner works with both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*storage.Run, error) {
	var r storage.Run
	var reason, startedAt, finishedAt string
	err := s.Scan(&r.ID, &r.Language, &reason, &r.ExitCode, &r.Output, &r.Error,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.Reason = storage.Reason(reason)
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	return &r, nil
}
