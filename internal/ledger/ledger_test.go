package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func ledgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "PROGRESS.yaml")
}

func entry(id string) Entry {
	return Entry{
		TaskID:      id,
		CompletedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Artifact:    "artifacts/" + id + ".md",
		Checkpoint:  "checkpoint/" + id,
	}
}

// TestLoad_MissingFileYieldsEmptyLedger verifies the first-run case: no file
// means an empty ledger, not an error.
func TestLoad_MissingFileYieldsEmptyLedger(t *testing.T) {
	l, err := Load(ledgerPath(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Expected empty ledger, got %d entries", l.Len())
	}
}

// TestAppend_PersistsAcrossReload verifies that appended entries survive a
// reload with their fields intact and in append order.
func TestAppend_PersistsAcrossReload(t *testing.T) {
	path := ledgerPath(t)
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := l.Append(entry(id)); err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	entries := reloaded.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries after reload, got %d", len(entries))
	}
	if entries[0].TaskID != "t1" || entries[2].TaskID != "t3" {
		t.Errorf("Append order not preserved: %+v", entries)
	}
	if entries[1].Checkpoint != "checkpoint/t2" || entries[1].Artifact != "artifacts/t2.md" {
		t.Errorf("Entry fields lost across reload: %+v", entries[1])
	}
	if !reloaded.Has("t2") {
		t.Error("Has(t2) = false after reload")
	}
}

// TestAppend_OnlyGrowsTheFile verifies append-only semantics at the byte
// level: a second append leaves the earlier bytes untouched.
func TestAppend_OnlyGrowsTheFile(t *testing.T) {
	path := ledgerPath(t)
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := l.Append(entry("t1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if err := l.Append(entry("t2")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if len(after) <= len(before) {
		t.Fatal("Second append did not grow the file")
	}
	if string(after[:len(before)]) != string(before) {
		t.Error("Append rewrote earlier bytes")
	}
}

// TestAppend_RejectsDuplicates verifies that at most one entry per task can
// ever be appended.
func TestAppend_RejectsDuplicates(t *testing.T) {
	l, err := Load(ledgerPath(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := l.Append(entry("t1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := l.Append(entry("t1")); err == nil {
		t.Error("Expected error appending a duplicate entry")
	}
	if err := l.Append(Entry{}); err == nil {
		t.Error("Expected error appending an entry without a task id")
	}
}

// TestLoad_DuplicateEntryRefusesToLoad verifies that a ledger file carrying
// two entries for one task is treated as corrupt.
func TestLoad_DuplicateEntryRefusesToLoad(t *testing.T) {
	path := ledgerPath(t)
	content := "- task_id: t1\n  artifact: a.md\n- task_id: t1\n  artifact: b.md\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error loading ledger with duplicate task id")
	}
}

// TestLoad_MalformedYAMLIsFatal verifies refusal to load an unparseable file.
func TestLoad_MalformedYAMLIsFatal(t *testing.T) {
	path := ledgerPath(t)
	if err := os.WriteFile(path, []byte("{not yaml\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed ledger")
	}
}

// TestTruncateTo_RestoresPriorState verifies the committer's rollback
// primitive: size plus entry count returns the ledger to a captured point.
func TestTruncateTo_RestoresPriorState(t *testing.T) {
	path := ledgerPath(t)
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := l.Append(entry("t1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	size, err := l.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	count := l.Len()

	if err := l.Append(entry("t2")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := l.TruncateTo(size, count); err != nil {
		t.Fatalf("TruncateTo failed: %v", err)
	}

	if l.Len() != 1 || l.Has("t2") {
		t.Errorf("In-memory state not rolled back: len=%d has(t2)=%v", l.Len(), l.Has("t2"))
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload after truncate failed: %v", err)
	}
	if reloaded.Len() != 1 || !reloaded.Has("t1") {
		t.Errorf("On-disk state not rolled back: %+v", reloaded.Entries())
	}
}

// TestTruncateTo_ZeroRemovesFile verifies rollback of the very first append.
func TestTruncateTo_ZeroRemovesFile(t *testing.T) {
	path := ledgerPath(t)
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := l.Append(entry("t1")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := l.TruncateTo(0, 0); err != nil {
		t.Fatalf("TruncateTo failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected ledger file to be removed")
	}
	if l.Len() != 0 {
		t.Errorf("Expected empty ledger, got %d entries", l.Len())
	}
}

// TestTail_ReturnsMostRecentInOrder verifies the prompt-context tail.
func TestTail_ReturnsMostRecentInOrder(t *testing.T) {
	l, err := Load(ledgerPath(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		if err := l.Append(entry(id)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	tail := l.Tail(2)
	if len(tail) != 2 || tail[0].TaskID != "t3" || tail[1].TaskID != "t4" {
		t.Errorf("Unexpected tail: %+v", tail)
	}

	if got := l.Tail(10); len(got) != 4 {
		t.Errorf("Tail larger than ledger should return everything, got %d", len(got))
	}
	if got := l.Tail(0); got != nil {
		t.Errorf("Tail(0) should be nil, got %+v", got)
	}
}
