package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store is the authoritative backlog of work items.
// It is loaded from a YAML file, read every iteration, and written only by the
// checkpoint committer on a successful commit. The harness process is the single
// writer; no other process may mutate the file while a run is active.
type Store struct {
	path    string
	records []*Record          // Manifest order, preserved across save cycles
	index   map[string]*Record // id -> record
}

// manifestFile is the on-disk YAML shape.
type manifestFile struct {
	Tasks []*Record `yaml:"tasks"`
}

// Load reads and validates the manifest at path.
// A missing or malformed file is a fatal startup error: the harness must not
// proceed without an authoritative backlog.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	s := &Store{
		path:  path,
		index: make(map[string]*Record, len(mf.Tasks)),
	}

	// Uniqueness invariant: no two records share an identifier.
	for i, rec := range mf.Tasks {
		if rec == nil || rec.ID == "" {
			return nil, fmt.Errorf("manifest %s: task at position %d has no id", path, i)
		}
		if _, exists := s.index[rec.ID]; exists {
			return nil, fmt.Errorf("manifest %s: duplicate task id %q", path, rec.ID)
		}
		s.records = append(s.records, rec)
		s.index[rec.ID] = rec
	}

	return s, nil
}

// Save writes the manifest back to its file atomically (temp file + rename),
// so a crash mid-write never leaves a truncated manifest behind.
func (s *Store) Save() error {
	data, err := yaml.Marshal(manifestFile{Tasks: s.records})
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".manifest-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp manifest: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing manifest %s: %w", s.path, err)
	}

	return nil
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (*Record, bool) {
	rec, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Records returns copies of all records in manifest order.
func (s *Store) Records() []*Record {
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.clone())
	}
	return out
}

// Len returns the total number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// MarkCompleted flips a record's completed flag from false to true.
// The flag is flipped exactly once per task: marking an unknown or
// already-completed task is an error, never a silent no-op.
func (s *Store) MarkCompleted(id string) error {
	rec, ok := s.index[id]
	if !ok {
		return fmt.Errorf("task %q not found in manifest", id)
	}
	if rec.Completed {
		return fmt.Errorf("task %q is already completed", id)
	}
	rec.Completed = true
	return nil
}

// RevertCompleted flips a record's completed flag back to false. This exists
// solely for the checkpoint committer's rollback path; normal operation never
// resets a flag.
func (s *Store) RevertCompleted(id string) error {
	rec, ok := s.index[id]
	if !ok {
		return fmt.Errorf("task %q not found in manifest", id)
	}
	if !rec.Completed {
		return fmt.Errorf("task %q is not completed", id)
	}
	rec.Completed = false
	return nil
}

// CompletedIDs returns the set of ids with completed = true.
func (s *Store) CompletedIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, rec := range s.records {
		if rec.Completed {
			ids[rec.ID] = true
		}
	}
	return ids
}

// CountCompleted returns how many records are completed.
func (s *Store) CountCompleted() int {
	n := 0
	for _, rec := range s.records {
		if rec.Completed {
			n++
		}
	}
	return n
}

// Remaining returns copies of all records still pending, in manifest order.
func (s *Store) Remaining() []*Record {
	var out []*Record
	for _, rec := range s.records {
		if !rec.Completed {
			out = append(out, rec.clone())
		}
	}
	return out
}
