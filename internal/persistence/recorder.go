package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for history writes.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 20ms)
	MaxInterval         time.Duration // Maximum retry interval (default 500ms)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 3s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration. Retries mostly
// absorb SQLITE_BUSY from sibling wrapper processes sharing the database.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     20 * time.Millisecond,
		MaxInterval:         500 * time.Millisecond,
		MaxElapsedTime:      3 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// Recorder writes build history on a best-effort basis. Write failures are
// logged and never returned: history must not change a build's result.
// A nil *Recorder discards everything.
type Recorder struct {
	store  Store
	cb     *gobreaker.CircuitBreaker
	retry  RetryConfig
	logger *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg RetryConfig) RecorderOption {
	return func(r *Recorder) { r.retry = cfg }
}

// NewRecorder wraps store with retries and a circuit breaker.
func NewRecorder(store Store, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  store,
		retry:  DefaultRetryConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "history",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is not a storage failure.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return r
}

// BeginRun records the start of a run.
func (r *Recorder) BeginRun(ctx context.Context, run Run) {
	if r == nil {
		return
	}
	r.write(ctx, "begin run", func() error { return r.store.BeginRun(ctx, run) })
}

// Record records one task outcome.
func (r *Recorder) Record(ctx context.Context, o TaskOutcome) {
	if r == nil {
		return
	}
	r.write(ctx, "record outcome", func() error { return r.store.RecordOutcome(ctx, o) })
}

// FinishRun records the final status of a run.
func (r *Recorder) FinishRun(ctx context.Context, runID, status string, runErr error) {
	if r == nil {
		return
	}
	r.write(ctx, "finish run", func() error { return r.store.FinishRun(ctx, runID, status, runErr) })
}

func (r *Recorder) write(ctx context.Context, op string, fn func() error) {
	if err := withRetry(ctx, r.cb, r.retry, fn); err != nil {
		r.logger.Warn("history write failed", "op", op, "error", err)
	}
}

// withRetry runs fn with exponential backoff retry and circuit breaker protection.
func withRetry(ctx context.Context, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, fn func() error) error {
	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			if errors.Is(err, ErrRunNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
