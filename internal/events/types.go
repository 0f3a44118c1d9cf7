package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
}

// Topic constants
const (
	TopicIteration = "iteration"
	TopicRun       = "run"
)

// Event type constants
const (
	EventTypeIterationStarted   = "iteration.started"
	EventTypeIterationOutput    = "iteration.output"
	EventTypeIterationCommitted = "iteration.committed"
	EventTypeIterationFailed    = "iteration.failed"
	EventTypeRunProgress        = "run.progress"
	EventTypeRunFinished        = "run.finished"
)

// IterationStartedEvent is published when an iteration selects a task and
// begins the worker invocation.
type IterationStartedEvent struct {
	Iteration int
	TaskID    string
	Timestamp time.Time
}

func (e IterationStartedEvent) EventType() string { return EventTypeIterationStarted }
func (e IterationStartedEvent) Topic() string     { return TopicIteration }

// IterationOutputEvent carries a bounded preview of the worker's raw output.
type IterationOutputEvent struct {
	Iteration int
	TaskID    string
	Output    string
	Timestamp time.Time
}

func (e IterationOutputEvent) EventType() string { return EventTypeIterationOutput }
func (e IterationOutputEvent) Topic() string     { return TopicIteration }

// IterationCommittedEvent is published when a checkpoint lands.
type IterationCommittedEvent struct {
	Iteration  int
	TaskID     string
	Checkpoint string
	Duration   time.Duration
	Timestamp  time.Time
}

func (e IterationCommittedEvent) EventType() string { return EventTypeIterationCommitted }
func (e IterationCommittedEvent) Topic() string     { return TopicIteration }

// IterationFailedEvent is published for rejected and errored iterations.
type IterationFailedEvent struct {
	Iteration int
	TaskID    string
	Outcome   string // "rejected" or "errored"
	Reason    string
	Stalls    int // Consecutive non-committed iterations so far
	Timestamp time.Time
}

func (e IterationFailedEvent) EventType() string { return EventTypeIterationFailed }
func (e IterationFailedEvent) Topic() string     { return TopicIteration }

// RunProgressEvent summarizes backlog progress after each iteration.
type RunProgressEvent struct {
	Total     int
	Completed int
	Remaining int
	Iteration int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) Topic() string     { return TopicRun }

// RunFinishedEvent is published once when the loop reaches a terminal state.
type RunFinishedEvent struct {
	Reason    string // "exhausted", "cap-reached", or "stalled"
	Completed int
	Remaining int
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) Topic() string     { return TopicRun }
