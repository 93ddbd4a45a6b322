package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcl-research/rcl/internal/model"
)

// Limiter enforces a minimum delay between requests sharing the same key,
// typically the host of a remote endpoint.
type Limiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	minDelay time.Duration
}

// NewLimiter creates a limiter that enforces minDelay between consecutive
// requests for the same key. A zero minDelay never blocks.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request for key.
// Returns an error if the context is cancelled while waiting.
func (r *Limiter) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	last, ok := r.lastCall[key]
	now := time.Now()

	if !ok || now.Sub(last) >= r.minDelay {
		r.lastCall[key] = now
		r.mu.Unlock()
		return nil
	}

	remaining := r.minDelay - now.Sub(last)
	// Reserve the slot so concurrent callers queue behind us.
	r.lastCall[key] = now.Add(remaining)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-time.After(remaining):
	}

	return nil
}

// RateLimitedQuerier is a decorator that enforces the limiter before
// delegating to the wrapped Querier.
type RateLimitedQuerier struct {
	inner   model.Querier
	limiter *Limiter
	key     string
}

// NewRateLimitedQuerier wraps a Querier with rate limiting under key.
// Queriers hitting the same endpoint should share one limiter and key.
func NewRateLimitedQuerier(inner model.Querier, limiter *Limiter, key string) *RateLimitedQuerier {
	return &RateLimitedQuerier{
		inner:   inner,
		limiter: limiter,
		key:     key,
	}
}

// Query waits for the limiter, then delegates.
func (q *RateLimitedQuerier) Query(ctx context.Context, prompt string) ([]string, error) {
	if err := q.limiter.Wait(ctx, q.key); err != nil {
		return nil, err
	}
	return q.inner.Query(ctx, prompt)
}
