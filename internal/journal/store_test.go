package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func record(iteration int, taskID, outcome string) Record {
	return Record{
		Iteration: iteration,
		TaskID:    taskID,
		Output:    "some output",
		Sentinel:  SentinelNone,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	}
}

// TestOpen_CreatesParentDirectories verifies the log file can live under a
// directory that does not exist yet.
func TestOpen_CreatesParentDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".grindstone", "journal.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected empty log, got %d records", n)
	}
}

// TestAppend_AndNextIteration verifies sequential numbering continues from
// the highest recorded iteration.
func TestAppend_AndNextIteration(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer s.Close()

	next, err := s.NextIteration(ctx)
	if err != nil {
		t.Fatalf("NextIteration failed: %v", err)
	}
	if next != 1 {
		t.Errorf("Expected first iteration to be 1, got %d", next)
	}

	if err := s.Append(ctx, record(1, "t1", OutcomeRejected)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, record(2, "t1", OutcomeCommitted)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	next, err = s.NextIteration(ctx)
	if err != nil {
		t.Fatalf("NextIteration failed: %v", err)
	}
	if next != 3 {
		t.Errorf("Expected next iteration 3, got %d", next)
	}
}

// TestAppend_RefusesOverwrite verifies append-only semantics: a duplicate
// iteration number is an error, not an update.
func TestAppend_RefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer s.Close()

	if err := s.Append(ctx, record(1, "t1", OutcomeRejected)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, record(1, "t1", OutcomeCommitted)); err == nil {
		t.Error("Expected error appending a duplicate iteration number")
	}
	if err := s.Append(ctx, record(0, "t1", OutcomeRejected)); err == nil {
		t.Error("Expected error for iteration number < 1")
	}
}

// TestTail_MostRecentAscending verifies the tail query used for prompt
// context: most recent n, returned oldest first.
func TestTail_MostRecentAscending(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer s.Close()

	for i := 1; i <= 5; i++ {
		if err := s.Append(ctx, record(i, "t1", OutcomeRejected)); err != nil {
			t.Fatalf("Append(%d) failed: %v", i, err)
		}
	}

	tail, err := s.Tail(ctx, 3)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(tail) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(tail))
	}
	if tail[0].Iteration != 3 || tail[2].Iteration != 5 {
		t.Errorf("Tail not in ascending order of most recent: %+v", tail)
	}

	empty, err := s.Tail(ctx, 0)
	if err != nil {
		t.Fatalf("Tail(0) failed: %v", err)
	}
	if empty != nil {
		t.Errorf("Tail(0) should be nil, got %+v", empty)
	}
}

// TestCountByOutcome verifies outcome filtering.
func TestCountByOutcome(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer s.Close()

	if err := s.Append(ctx, record(1, "t1", OutcomeRejected)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, record(2, "t1", OutcomeCommitted)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(ctx, record(3, "t2", OutcomeCommitted)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	n, err := s.CountByOutcome(ctx, OutcomeCommitted)
	if err != nil {
		t.Fatalf("CountByOutcome failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 committed records, got %d", n)
	}
}

// TestOpen_PersistsAcrossReopen verifies records survive a close and reopen
// of the same database file.
func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rec := record(1, "t1", OutcomeCommitted)
	rec.Checkpoint = "checkpoint/t1"
	rec.Detail = "committed"
	if err := s.Append(ctx, rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	tail, err := reopened.Tail(ctx, 1)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(tail) != 1 || tail[0].TaskID != "t1" || tail[0].Checkpoint != "checkpoint/t1" {
		t.Errorf("Record lost or mangled across reopen: %+v", tail)
	}
}
