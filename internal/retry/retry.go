package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/rcl-research/rcl/internal/model"
)

// Policy describes how many times to retry and how long to wait in between.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled each time
	Logger     *slog.Logger
}

// Do runs op, retrying transient failures with exponential backoff and jitter.
// name identifies the operation in log lines.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	out, err := op(ctx)
	if err == nil || !isRetryable(err) {
		return out, err
	}

	var zero T
	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		logger.Warn("retrying after transient error",
			"op", name,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		out, err = op(ctx)
		if err == nil {
			return out, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}

	// Non-HTTP errors (network, DNS) are retryable.
	return true
}

// RetryQuerier is a decorator that retries transient LLM failures before
// giving up.
type RetryQuerier struct {
	inner  model.Querier
	policy Policy
}

// NewRetryQuerier wraps a Querier with retry logic.
func NewRetryQuerier(inner model.Querier, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryQuerier {
	return &RetryQuerier{
		inner:  inner,
		policy: Policy{MaxRetries: maxRetries, BaseDelay: baseDelay, Logger: logger},
	}
}

// Query delegates to the wrapped Querier, retrying on transient errors.
func (q *RetryQuerier) Query(ctx context.Context, prompt string) ([]string, error) {
	return Do(ctx, q.policy, "llm query", func(ctx context.Context) ([]string, error) {
		return q.inner.Query(ctx, prompt)
	})
}
