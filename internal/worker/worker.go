// Package worker invokes the external generative worker as a subprocess and
// captures its raw output. It performs no durable writes: all persistence is
// the committer's responsibility, so a crash mid-invocation leaves no partial
// state behind.
package worker

import (
	"context"
	"errors"
	"fmt"
)

// ErrWorkerUnavailable indicates the worker process could not be spawned or
// exited without producing parseable output.
var ErrWorkerUnavailable = errors.New("worker unavailable")

// ErrWorkerTimeout indicates the invocation exceeded its deadline.
var ErrWorkerTimeout = errors.New("worker invocation timed out")

// Worker is the capability interface for the external generative worker.
// Any concrete worker (subprocess, HTTP call, SDK) can stand behind it; tests
// substitute a fake with scripted responses.
type Worker interface {
	// Invoke sends one request to the worker and returns its raw output.
	Invoke(ctx context.Context, req Request) (Response, error)

	// Close releases any worker resources.
	Close() error

	// SessionID returns the current session identifier.
	SessionID() string
}

// New creates a worker adapter based on the provided configuration.
func New(cfg Config, pm *ProcessManager) (Worker, error) {
	switch cfg.Type {
	case "claude":
		return NewClaudeWorker(cfg, pm)
	case "codex":
		return NewCodexWorker(cfg, pm)
	case "gemini":
		return NewGeminiWorker(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown worker type: %s", cfg.Type)
	}
}

// classifyInvokeError maps a subprocess failure onto the harness error
// taxonomy. Deadline expiry becomes ErrWorkerTimeout; everything else is
// ErrWorkerUnavailable. Both are transient at the iteration level.
func classifyInvokeError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrWorkerTimeout, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
}
