// Package journal persists the append-only iteration log: one structured
// record per loop iteration, written synchronously before the next begins.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed iteration log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the iteration log at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy timeout.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open iteration log: %w", err)
	}

	// Single connection: the harness is the only writer and appends are sequential.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize iteration log schema: %w", err)
	}

	return s, nil
}

// OpenMemory creates an in-memory iteration log for testing. Each call gets
// its own database: a unique name keeps concurrently running tests isolated.
func OpenMemory(ctx context.Context) (*Store, error) {
	name := fmt.Sprintf("file:journal-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory iteration log: %w", err)
	}

	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize iteration log schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts one iteration record. Iteration numbers are unique; inserting
// a duplicate is an error rather than an overwrite, preserving append-only
// semantics.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.Iteration < 1 {
		return fmt.Errorf("iteration number must be >= 1, got %d", rec.Iteration)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iterations (iteration, task_id, output, sentinel, outcome, checkpoint, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Iteration, rec.TaskID, rec.Output, rec.Sentinel, rec.Outcome, rec.Checkpoint, rec.Detail, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append iteration %d: %w", rec.Iteration, err)
	}
	return nil
}

// NextIteration returns the next iteration number (1 on an empty log), so a
// restarted run continues the numbering of the previous one.
func (s *Store) NextIteration(ctx context.Context) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(iteration) FROM iterations`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max iteration: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// Tail returns up to n most recent records in ascending iteration order.
func (s *Store) Tail(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, task_id, output, sentinel, outcome, checkpoint, detail, created_at
		FROM (
			SELECT * FROM iterations ORDER BY iteration DESC LIMIT ?
		) ORDER BY iteration ASC
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query iteration tail: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Iteration, &rec.TaskID, &rec.Output, &rec.Sentinel,
			&rec.Outcome, &rec.Checkpoint, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan iteration record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Count returns the total number of recorded iterations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM iterations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count iterations: %w", err)
	}
	return n, nil
}

// CountByOutcome returns how many iterations finished with the given outcome.
func (s *Store) CountByOutcome(ctx context.Context, outcome string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM iterations WHERE outcome = ?`, outcome).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s iterations: %w", outcome, err)
	}
	return n, nil
}
