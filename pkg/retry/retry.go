// Package retry provides a reusable retry policy with exponential backoff.
// Callers decide which failures are worth retrying through a predicate;
// the default predicate gives up immediately on client-side HTTP errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Policy describes how a call is retried.
type Policy struct {
	// Retries is the total number of attempts, including the first one.
	Retries int
	// Backoff is the delay before the second attempt; it doubles afterwards.
	Backoff time.Duration
	// MaxBackoff caps a single delay. Zero means no cap.
	MaxBackoff time.Duration

	// IsRetryable reports whether err should trigger another attempt.
	// Nil means DefaultRetryable.
	IsRetryable func(error) bool

	// Sleep waits for d or until ctx is done. Nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

// DefaultPolicy returns three attempts starting at a one second backoff.
func DefaultPolicy() Policy {
	return Policy{
		Retries: 3,
		Backoff: time.Second,
	}
}

// DefaultRetryable treats 4xx responses and caller cancellation as final.
// Everything else (5xx, timeouts, network and decode failures) is transient.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code >= 400 && code < 500 {
			return false
		}
	}
	return true
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Retries
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		logger.Warn("request failed, retrying",
			"attempt", attempt+1,
			"max_retries", attempts,
			"delay", delay,
			"error", err,
		)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	if attempts == 1 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("max retries (%d) exceeded: %w", attempts, lastErr)
}

// Delay returns the wait after the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.Backoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
