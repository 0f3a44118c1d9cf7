// Package harness contains the iteration controller: the top-level loop that
// selects a task, invokes the worker, parses its output, checkpoints the
// result, and records the iteration, until the backlog is exhausted or a bound
// is hit.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"grindstone/internal/checkpoint"
	"grindstone/internal/events"
	"grindstone/internal/journal"
	"grindstone/internal/ledger"
	"grindstone/internal/manifest"
	"grindstone/internal/selector"
	"grindstone/internal/sentinel"
	"grindstone/internal/worker"
)

// State identifies the controller's position in the iteration state machine.
type State int

const (
	StateSelecting State = iota
	StateInvoking
	StateParsing
	StateCommitting
	StateExhausted
	StateCapReached
	StateStalled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateInvoking:
		return "invoking"
	case StateParsing:
		return "parsing"
	case StateCommitting:
		return "committing"
	case StateExhausted:
		return "exhausted"
	case StateCapReached:
		return "cap-reached"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Exit reasons reported in the run summary.
const (
	ReasonExhausted  = "exhausted"
	ReasonCapReached = "cap-reached"
	ReasonStalled    = "stalled"
)

// Config bounds the loop and the per-iteration context window.
type Config struct {
	MaxIterations  int           // Hard bound on iterations per run
	StallThreshold int           // Consecutive non-committed iterations before Stalled
	InvokeTimeout  time.Duration // Deadline for a single worker invocation
	LedgerTail     int           // Ledger entries packaged into the prompt
	JournalTail    int           // Journal records packaged into the prompt
	OutputCap      int           // Max bytes of raw output stored per iteration
	WorkerType     string        // Circuit breaker key
	Retry          RetryConfig
}

// Summary is the final report of a run.
type Summary struct {
	Reason     string   // ReasonExhausted, ReasonCapReached, or ReasonStalled
	Iterations int      // Iterations executed by this run
	Committed  int      // Tasks committed by this run
	Completed  int      // Total completed tasks in the manifest
	Remaining  []string // Ids of tasks still pending
}

// Controller drives the loop. Strictly single-threaded: each iteration's
// prompt depends on the durably committed state of the previous one, so there
// is never more than one task in flight.
type Controller struct {
	cfg       Config
	store     *manifest.Store
	ledger    *ledger.Ledger
	journal   *journal.Store
	worker    worker.Worker
	parser    *sentinel.Parser
	committer *checkpoint.Committer
	bus       *events.Bus
	breakers  *CircuitBreakerRegistry
	logger    *zap.Logger

	state  State
	stalls int
}

// New creates a Controller. The bus may be nil when nothing observes the run.
func New(cfg Config, store *manifest.Store, lgr *ledger.Ledger, jrnl *journal.Store,
	w worker.Worker, parser *sentinel.Parser, committer *checkpoint.Committer,
	bus *events.Bus, logger *zap.Logger) *Controller {

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 50
	}
	if cfg.StallThreshold <= 0 {
		cfg.StallThreshold = 5
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = 10 * time.Minute
	}
	if cfg.OutputCap <= 0 {
		cfg.OutputCap = 64 * 1024
	}
	if cfg.WorkerType == "" {
		cfg.WorkerType = "worker"
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		cfg:       cfg,
		store:     store,
		ledger:    lgr,
		journal:   jrnl,
		worker:    w,
		parser:    parser,
		committer: committer,
		bus:       bus,
		breakers:  NewCircuitBreakerRegistry(logger),
		logger:    logger.With(zap.String("component", "controller")),
		state:     StateSelecting,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return c.state
}

// Run executes the loop until a terminal state is reached or the context is
// cancelled at an iteration boundary. Integrity errors abort with a non-nil
// error; terminal states return a Summary with a nil error.
func (c *Controller) Run(ctx context.Context) (*Summary, error) {
	nextIteration, err := c.journal.NextIteration(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading iteration log: %w", err)
	}

	committed := 0
	executed := 0
	cb := c.breakers.Get(c.cfg.WorkerType)

	for {
		// Interrupts are honored only here, at the iteration boundary.
		if err := ctx.Err(); err != nil {
			return c.summary("", executed, committed), err
		}

		if executed >= c.cfg.MaxIterations {
			c.state = StateCapReached
			return c.finish(ReasonCapReached, executed, committed), nil
		}

		c.state = StateSelecting
		task, err := selector.Next(c.store, c.ledger)
		if err != nil {
			var integrityErr *selector.IntegrityError
			if errors.As(err, &integrityErr) {
				// Never pick a side: halt and leave the divergence for the
				// operator.
				c.logger.Error("halting on integrity violation", zap.Error(integrityErr))
				return nil, integrityErr
			}
			if errors.Is(err, selector.ErrBacklogExhausted) {
				c.appendRecord(ctx, journal.Record{
					Iteration: nextIteration,
					Sentinel:  journal.SentinelNone,
					Outcome:   journal.OutcomeCommitted,
					Detail:    "backlog exhausted",
				})
				c.state = StateExhausted
				return c.finish(ReasonExhausted, executed+1, committed), nil
			}
			return nil, fmt.Errorf("selecting task: %w", err)
		}

		iteration := nextIteration
		nextIteration++
		executed++
		start := time.Now()

		c.logger.Info("iteration started",
			zap.Int("iteration", iteration),
			zap.String("task", task.ID))
		c.publish(events.IterationStartedEvent{
			Iteration: iteration,
			TaskID:    task.ID,
			Timestamp: start,
		})

		rec := c.runIteration(ctx, cb, iteration, task)

		// The record is appended synchronously before anything else happens,
		// so the audit trail always covers every iteration that ran.
		c.appendRecord(ctx, rec)
		c.publishOutcome(rec, time.Since(start))

		switch rec.Outcome {
		case journal.OutcomeCommitted:
			c.stalls = 0
			if rec.Checkpoint != "" {
				committed++
			}
		default:
			c.stalls++
			c.logger.Warn("iteration produced no commit",
				zap.Int("iteration", iteration),
				zap.String("outcome", rec.Outcome),
				zap.Int("consecutive_stalls", c.stalls))
		}

		if rec.Sentinel == journal.SentinelAll {
			c.state = StateExhausted
			return c.finish(ReasonExhausted, executed, committed), nil
		}

		// An interrupt that arrived mid-invocation surfaces here, after the
		// record landed.
		if err := ctx.Err(); err != nil {
			return c.summary("", executed, committed), err
		}

		if c.stalls >= c.cfg.StallThreshold {
			c.state = StateStalled
			return c.finish(ReasonStalled, executed, committed), nil
		}
	}
}

// runIteration executes the Invoking -> Parsing -> Committing leg for one
// selected task and returns the journal record describing what happened.
func (c *Controller) runIteration(ctx context.Context, cb *gobreaker.CircuitBreaker, iteration int, task *manifest.Record) journal.Record {

	rec := journal.Record{
		Iteration: iteration,
		TaskID:    task.ID,
		Sentinel:  journal.SentinelNone,
		CreatedAt: time.Now(),
	}

	c.state = StateInvoking
	prompt, err := c.buildIterationPrompt(ctx, task)
	if err != nil {
		rec.Outcome = journal.OutcomeErrored
		rec.Detail = err.Error()
		return rec
	}

	invokeCtx, cancel := context.WithTimeout(ctx, c.cfg.InvokeTimeout)
	resp, err := invokeWithRetry(invokeCtx, c.worker, worker.Request{Prompt: prompt}, cb, c.cfg.Retry)
	cancel()
	if err != nil {
		rec.Outcome = journal.OutcomeErrored
		rec.Detail = err.Error()
		return rec
	}

	rec.Output = truncate(resp.Output, c.cfg.OutputCap)

	c.state = StateParsing
	switch c.parser.Parse(resp.Output, task.ID) {
	case sentinel.AllComplete:
		// The worker asserts the backlog is done. Nothing is committed for the
		// selected task; the loop verifies completion counts in the summary.
		rec.Sentinel = journal.SentinelAll
		rec.Outcome = journal.OutcomeCommitted
		rec.Detail = "worker declared backlog complete"
		return rec

	case sentinel.TaskComplete:
		rec.Sentinel = journal.SentinelTask

	case sentinel.Incomplete:
		rec.Outcome = journal.OutcomeRejected
		rec.Detail = "no completion sentinel in worker output"
		return rec
	}

	c.state = StateCommitting
	body := c.parser.StripTokens(resp.Output, task.ID)
	result, err := c.committer.Commit(task, body, time.Now())
	if err != nil {
		// Fatal for the iteration, not the process: the flag never flipped, so
		// the task is reselected next time.
		rec.Outcome = journal.OutcomeErrored
		rec.Detail = fmt.Sprintf("checkpoint failed: %v", err)
		return rec
	}

	rec.Outcome = journal.OutcomeCommitted
	rec.Checkpoint = result.Checkpoint
	return rec
}

// buildIterationPrompt assembles the bounded context window for one request.
func (c *Controller) buildIterationPrompt(ctx context.Context, task *manifest.Record) (string, error) {
	journalTail, err := c.journal.Tail(ctx, c.cfg.JournalTail)
	if err != nil {
		return "", fmt.Errorf("reading journal tail: %w", err)
	}

	return buildPrompt(promptContext{
		Task:        task,
		Store:       c.store,
		LedgerTail:  c.ledger.Tail(c.cfg.LedgerTail),
		JournalTail: journalTail,
		Parser:      c.parser,
	}), nil
}

// appendRecord writes the iteration record, stamping CreatedAt if unset.
// Append failures are logged loudly but do not abort the run: losing an audit
// row is better than losing committed work.
func (c *Controller) appendRecord(ctx context.Context, rec journal.Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	// The append must survive an interrupt that cancelled the run context.
	if err := c.journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Error("failed to append iteration record",
			zap.Int("iteration", rec.Iteration), zap.Error(err))
	}
}

// publishOutcome emits the per-iteration events for observers.
func (c *Controller) publishOutcome(rec journal.Record, elapsed time.Duration) {
	now := time.Now()

	if rec.Output != "" {
		c.publish(events.IterationOutputEvent{
			Iteration: rec.Iteration,
			TaskID:    rec.TaskID,
			Output:    truncate(rec.Output, 2048),
			Timestamp: now,
		})
	}

	switch rec.Outcome {
	case journal.OutcomeCommitted:
		c.publish(events.IterationCommittedEvent{
			Iteration:  rec.Iteration,
			TaskID:     rec.TaskID,
			Checkpoint: rec.Checkpoint,
			Duration:   elapsed,
			Timestamp:  now,
		})
	default:
		c.publish(events.IterationFailedEvent{
			Iteration: rec.Iteration,
			TaskID:    rec.TaskID,
			Outcome:   rec.Outcome,
			Reason:    rec.Detail,
			Stalls:    c.stalls + 1,
			Timestamp: now,
		})
	}

	c.publish(events.RunProgressEvent{
		Total:     c.store.Len(),
		Completed: c.store.CountCompleted(),
		Remaining: c.store.Len() - c.store.CountCompleted(),
		Iteration: rec.Iteration,
		Timestamp: now,
	})
}

// finish logs the terminal state, publishes the final event, and builds the
// summary.
func (c *Controller) finish(reason string, executed, committed int) *Summary {
	s := c.summary(reason, executed, committed)

	c.logger.Info("run finished",
		zap.String("reason", reason),
		zap.Int("iterations", s.Iterations),
		zap.Int("committed_this_run", s.Committed),
		zap.Int("completed_total", s.Completed),
		zap.Int("remaining", len(s.Remaining)))

	c.publish(events.RunFinishedEvent{
		Reason:    reason,
		Completed: s.Completed,
		Remaining: len(s.Remaining),
		Timestamp: time.Now(),
	})

	return s
}

func (c *Controller) summary(reason string, executed, committed int) *Summary {
	var remaining []string
	for _, rec := range c.store.Remaining() {
		remaining = append(remaining, rec.ID)
	}
	return &Summary{
		Reason:     reason,
		Iterations: executed,
		Committed:  committed,
		Completed:  c.store.CountCompleted(),
		Remaining:  remaining,
	}
}

func (c *Controller) publish(event events.Event) {
	if c.bus != nil {
		c.bus.Publish(event)
	}
}

// truncate caps s at n bytes, marking the cut.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "\n[... output truncated ...]"
}
