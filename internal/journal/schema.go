package journal

import (
	"context"
)

// initSchema creates the iterations table if it doesn't exist.
// There is deliberately no UPDATE path anywhere in this package: the table is
// insert-only and the iteration number is the primary key.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS iterations (
		iteration INTEGER PRIMARY KEY,
		task_id TEXT NOT NULL,
		output TEXT NOT NULL,
		sentinel TEXT NOT NULL,
		outcome TEXT NOT NULL,
		checkpoint TEXT,
		detail TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_iterations_outcome ON iterations(outcome);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
