package manifest

// Record represents a single unit of work in the backlog.
type Record struct {
	ID          string            `yaml:"id"`                    // Unique, stable identifier
	Category    string            `yaml:"category,omitempty"`    // Grouping used for artifact layout
	Description string            `yaml:"description,omitempty"` // Free-form task description
	Metadata    map[string]string `yaml:"metadata,omitempty"`    // Arbitrary key/value hints for the worker
	Completed   bool              `yaml:"completed"`             // Flipped false->true exactly once on commit
}

// clone returns a deep copy so callers cannot mutate store-owned records.
func (r *Record) clone() *Record {
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
