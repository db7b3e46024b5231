// Package resilience provides the retry policy shared by every outbound call
// of the bridge (image uploads and blog publishing). A single Retrier is built
// from configuration and injected into each call site.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrExhaustedRetries indicates retry attempts were exhausted.
var ErrExhaustedRetries = errors.New("retry attempts exhausted")

// Policy describes how many times an operation is attempted and how long to
// wait between attempts. A zero InitialInterval means no backoff.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy returns three attempts with no backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Multiplier:  1,
	}
}

// Permanent wraps err so that the default retryable predicate stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return retry.Unrecoverable(err)
}

// IsRetryable is the default predicate: everything except permanent errors is
// retried. Timeouts of the HTTP client are retried like any other failure;
// cancellation of the caller's context is handled by Do.
func IsRetryable(err error) bool {
	return retry.IsRecoverable(err)
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy    Policy
	retryable func(error) bool
	logger    *slog.Logger
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithRetryable replaces the predicate deciding whether an error is retried.
func WithRetryable(fn func(error) bool) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.retryable = fn
		}
	}
}

// NewRetrier creates a Retrier. Non-positive MaxAttempts is treated as one
// attempt.
func NewRetrier(policy Policy, logger *slog.Logger, opts ...Option) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retrier{
		policy:    policy,
		retryable: IsRetryable,
		logger:    logger.With("component", "retrier"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the policy the Retrier was built with.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs operation until it succeeds, returns a non-retryable error, the
// context is done, or the attempts are used up. The exhausted error wraps both
// ErrExhaustedRetries and the last operation error.
func (r *Retrier) Do(ctx context.Context, name string, operation func(context.Context) error) error {
	attempts := 0
	var lastErr error

	err := retry.Do(
		func() error {
			attempts++
			lastErr = operation(ctx)
			return lastErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.policy.MaxAttempts)),
		retry.Delay(r.policy.InitialInterval),
		retry.MaxDelay(r.policy.MaxInterval),
		retry.DelayType(r.delayType()),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && r.retryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 >= r.policy.MaxAttempts || ctx.Err() != nil || !r.retryable(err) {
				return
			}
			r.logger.WarnContext(ctx, "Operation failed, retrying",
				"operation", name,
				"attempt", n+1,
				"max_attempts", r.policy.MaxAttempts,
				"error", err,
			)
		}),
	)
	if err == nil {
		if attempts > 1 {
			r.logger.DebugContext(ctx, "Operation succeeded after retry", "operation", name, "attempt", attempts)
		}
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: retry abandoned: %w", name, ctx.Err())
	}
	if lastErr == nil {
		lastErr = err
	}
	if !r.retryable(lastErr) {
		return lastErr
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhaustedRetries, attempts, lastErr)
}

// delayType keeps a fixed delay for a multiplier of one and otherwise grows
// the delay geometrically. retry.MaxDelay caps the result.
func (r *Retrier) delayType() retry.DelayTypeFunc {
	if r.policy.Multiplier == 1 {
		return retry.FixedDelay
	}
	initial := float64(r.policy.InitialInterval)
	multiplier := r.policy.Multiplier
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		// n is 1 for the wait after the first failure.
		d := initial * math.Pow(multiplier, float64(n)-1)
		if d > math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)
	}
}
