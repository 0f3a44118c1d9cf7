package journal

import "time"

// Sentinel classification recorded for an iteration.
const (
	SentinelTask = "task" // Task-level completion token detected
	SentinelAll  = "all"  // Run-level completion token detected
	SentinelNone = "none" // No recognizable token
)

// Iteration outcomes.
const (
	OutcomeCommitted = "committed" // Artifact persisted, manifest and ledger updated
	OutcomeRejected  = "rejected"  // Worker output carried no usable completion claim
	OutcomeErrored   = "errored"   // Invocation or commit failed
)

// Record is the audit entry for a single loop iteration.
// Records are append-only: once written they are never mutated.
type Record struct {
	Iteration  int       // Monotonic, starting at 1
	TaskID     string    // Selected task, or "" when the backlog was exhausted
	Output     string    // Raw worker output, truncated to the configured cap
	Sentinel   string    // SentinelTask, SentinelAll, or SentinelNone
	Outcome    string    // OutcomeCommitted, OutcomeRejected, or OutcomeErrored
	Checkpoint string    // Version-control checkpoint id, if committed
	Detail     string    // Error detail for rejected/errored iterations
	CreatedAt  time.Time
}
