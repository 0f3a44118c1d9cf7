// Package ledger maintains the append-only progress ledger: one entry per
// committed task, cross-checked against the manifest's completed flags.
package ledger

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry records one completed task.
type Entry struct {
	TaskID      string    `yaml:"task_id"`
	CompletedAt time.Time `yaml:"completed_at"`
	Artifact    string    `yaml:"artifact"`   // Path of the produced artifact
	Checkpoint  string    `yaml:"checkpoint"` // Version-control checkpoint identifier
}

// Ledger is the durable record of completed work. Entries are appended on
// successful commit and never rewritten in place; the file stays readable as a
// plain YAML list so operators can review progress without tooling.
type Ledger struct {
	path    string
	entries []Entry
	ids     map[string]bool
}

// Load reads the ledger at path. A missing file yields an empty ledger (first
// run); an unreadable or malformed file is a fatal startup error. A duplicate
// task id in the ledger is an integrity violation and also refuses to load.
func Load(path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		ids:  make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress ledger %s: %w", path, err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing progress ledger %s: %w", path, err)
	}

	for _, e := range entries {
		if e.TaskID == "" {
			return nil, fmt.Errorf("progress ledger %s: entry with empty task id", path)
		}
		if l.ids[e.TaskID] {
			return nil, fmt.Errorf("progress ledger %s: duplicate entry for task %q", path, e.TaskID)
		}
		l.entries = append(l.entries, e)
		l.ids[e.TaskID] = true
	}

	return l, nil
}

// Append writes a single entry to the end of the ledger file and records it in
// memory. The entry is rendered as one YAML list item and written with
// O_APPEND, so prior entries are never touched.
func (l *Ledger) Append(e Entry) error {
	if e.TaskID == "" {
		return fmt.Errorf("ledger entry has empty task id")
	}
	if l.ids[e.TaskID] {
		return fmt.Errorf("ledger already has an entry for task %q", e.TaskID)
	}

	data, err := yaml.Marshal([]Entry{e})
	if err != nil {
		return fmt.Errorf("marshaling ledger entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening progress ledger %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("appending to progress ledger %s: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing progress ledger %s: %w", l.path, err)
	}

	l.entries = append(l.entries, e)
	l.ids[e.TaskID] = true
	return nil
}

// Size returns the current byte length of the ledger file, used by the
// committer to capture a rollback point before appending.
func (l *Ledger) Size() (int64, error) {
	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat progress ledger %s: %w", l.path, err)
	}
	return info.Size(), nil
}

// TruncateTo cuts the ledger file back to a previously captured size and drops
// the in-memory entries past it. Only the committer's rollback path uses this.
func (l *Ledger) TruncateTo(size int64, entryCount int) error {
	if size == 0 {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing progress ledger %s: %w", l.path, err)
		}
	} else if err := os.Truncate(l.path, size); err != nil {
		return fmt.Errorf("truncating progress ledger %s: %w", l.path, err)
	}

	for _, e := range l.entries[entryCount:] {
		delete(l.ids, e.TaskID)
	}
	l.entries = l.entries[:entryCount]
	return nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Entries returns a copy of all entries in append order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Has reports whether the ledger contains an entry for the given task.
func (l *Ledger) Has(taskID string) bool {
	return l.ids[taskID]
}

// IDs returns the set of task ids present in the ledger.
func (l *Ledger) IDs() map[string]bool {
	ids := make(map[string]bool, len(l.ids))
	for id := range l.ids {
		ids[id] = true
	}
	return ids
}

// Tail returns up to n most recent entries in append order.
func (l *Ledger) Tail(n int) []Entry {
	if n <= 0 || len(l.entries) == 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
