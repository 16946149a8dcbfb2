// Package retry provides utilities for retrying operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy describes how an operation class is retried.
// Policies are values: they are built once from configuration and never mutated.
type Policy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every non-fatal error.
	Retryable func(error) bool

	// AllowDestructive must be set by call sites that want a destructive
	// operation (delete) retried. ExecuteDestructive runs once otherwise.
	AllowDestructive bool

	// OnRetry is invoked before each sleep (optional).
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the policy used when a caller supplies none.
func DefaultPolicy() Policy {
	return Policy{
		Name:        "default",
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the wait before attempt n+1, where n is the 1-based number
// of the attempt that just failed: BaseDelay * Multiplier^(n-1), capped at MaxDelay.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Schedule returns every delay the policy can produce, in order.
func (p Policy) Schedule() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for n := 1; n < p.MaxAttempts; n++ {
		out = append(out, p.Delay(n))
	}
	return out
}

// Validate reports policy values that cannot be executed.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy %q: max attempts must be at least 1", p.Name)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry policy %q: delays must not be negative", p.Name)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry policy %q: multiplier must be >= 1", p.Name)
	}
	return nil
}

// WithRetryable returns a copy of the policy using the given predicate.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper. It is the only place the executor blocks.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor runs operations under a Policy.
type Executor struct {
	Sleep Sleeper
}

// NewExecutor creates an executor that sleeps with ContextSleep.
func NewExecutor() *Executor {
	return &Executor{Sleep: ContextSleep}
}

// ExhaustedError is returned when an operation failed on its last allowed attempt.
type ExhaustedError struct {
	Policy   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: operation failed after %d attempts: %v", e.Policy, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// CancelledError is returned when the context ends while waiting between attempts.
type CancelledError struct {
	Attempts int
	Err      error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("context cancelled after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// policy's attempts are used up, or ctx is cancelled.
//
// Errors wrapped with Fatal() are not retried.
func (x *Executor) Execute(ctx context.Context, op func(ctx context.Context) error, p Policy) error {
	sleep := x.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CancelledError{Attempts: attempt - 1, Err: err}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return &CancelledError{Attempts: attempt, Err: errors.Join(err, lastErr)}
		}
	}

	return &ExhaustedError{Policy: p.Name, Attempts: maxAttempts, Err: lastErr}
}

// ExecuteDestructive runs a destructive operation. Unless the policy opts in
// with AllowDestructive, the operation is attempted exactly once.
func (x *Executor) ExecuteDestructive(ctx context.Context, op func(ctx context.Context) error, p Policy) error {
	if !p.AllowDestructive {
		p.MaxAttempts = 1
	}
	return x.Execute(ctx, op, p)
}

// Do is Execute for operations that produce a value.
func Do[T any](ctx context.Context, x *Executor, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := x.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, p)
	return out, err
}

// Attempts extracts the attempt count recorded in a retry error, or 1 when
// the error did not come from an exhausted or cancelled retry loop.
func Attempts(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	var ce *CancelledError
	if errors.As(err, &ce) {
		return ce.Attempts
	}
	return 1
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
