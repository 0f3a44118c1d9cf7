package harness

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"grindstone/internal/worker"
)

// RetryConfig configures exponential backoff retry behavior for worker
// invocations within a single iteration.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// CircuitBreakerRegistry manages per-worker-type circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	logger   *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(logger *zap.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreakerRegistry{
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given worker type.
// Creates a new one if it doesn't exist.
func (r *CircuitBreakerRegistry) Get(workerType string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[workerType]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        workerType,
		MaxRequests: 3,                // Allow 3 test requests in half-open state
		Interval:    0,                // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change",
				zap.String("worker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Cancellation and per-iteration deadline expiry are not worker
			// health signals.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			if errors.Is(err, worker.ErrWorkerTimeout) {
				return true
			}
			return false
		},
	})

	r.breakers[workerType] = cb
	return cb
}

// invokeWithRetry invokes the worker with exponential backoff retry and
// circuit breaker protection. Timeouts are not retried: the per-invocation
// deadline bounds the whole iteration, so a timed-out invocation is handed
// back to the loop as an errored iteration instead.
func invokeWithRetry(ctx context.Context, w worker.Worker, req worker.Request, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig) (worker.Response, error) {
	var resp worker.Response

	operation := func() error {
		// Fail fast if the deadline or an interrupt already hit.
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return w.Invoke(ctx, req)
		})

		if err != nil {
			// Circuit is open - don't retry.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			// Deadline or cancellation - stop retrying.
			if ctx.Err() != nil || errors.Is(err, worker.ErrWorkerTimeout) {
				return backoff.Permanent(err)
			}

			// Spawn failures and malformed output are retried.
			return err
		}

		resp = result.(worker.Response)
		return nil
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = retryCfg.InitialInterval
	backoffPolicy.MaxInterval = retryCfg.MaxInterval
	backoffPolicy.MaxElapsedTime = retryCfg.MaxElapsedTime
	backoffPolicy.Multiplier = retryCfg.Multiplier
	backoffPolicy.RandomizationFactor = retryCfg.RandomizationFactor

	backoffWithContext := backoff.WithContext(backoffPolicy, ctx)

	err := backoff.Retry(operation, backoffWithContext)
	return resp, err
}
