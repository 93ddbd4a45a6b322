package llm

import (
	"context"
	"strings"
)

// QueryFunc sends a prompt and returns the reply lines.
type QueryFunc func(ctx context.Context, prompt string) ([]string, error)

// Query lets a QueryFunc stand in for model.Querier.
func (f QueryFunc) Query(ctx context.Context, prompt string) ([]string, error) {
	return f(ctx, prompt)
}

// NewQueryFunc binds an endpoint and key once and returns a single-argument
// query function. Nothing outside the returned closure is modified.
func NewQueryFunc(baseURL, apiKey string, opts ...Option) (QueryFunc, error) {
	c, err := NewClient(baseURL, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return c.Query, nil
}

// SplitLines splits s on "\n" with no trimming: an empty reply yields one
// empty line and a trailing newline yields a trailing empty line.
func SplitLines(s string) []string {
	return strings.Split(s, "\n")
}
