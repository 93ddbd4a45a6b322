package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rcl-research/rcl/internal/model"
)

// DefaultModel is the chat model requested when none is configured.
const DefaultModel = "openchat_3.5"

// ErrNoChoices is returned when the endpoint answers without any completion.
var ErrNoChoices = errors.New("llm returned no choices")

// Ensure Client implements model.Querier.
var _ model.Querier = (*Client)(nil)

// Client talks to an OpenAI-compatible /chat/completions endpoint.
// It is immutable once built and safe for concurrent use.
type Client struct {
	sdk    *openai.Client
	model  string
	logger *slog.Logger
}

type clientOptions struct {
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

// WithModel overrides DefaultModel.
func WithModel(name string) Option {
	return func(o *clientOptions) {
		if name != "" {
			o.model = name
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests. Its Timeout bounds each call.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient builds a client bound to baseURL and apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("llm base URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("llm API key is required")
	}

	o := clientOptions{
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Retries are left to the retry package so that policy lives in one place.
	sdk := openai.NewClient(
		option.WithBaseURL(normalizeBaseURL(baseURL)),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	)

	return &Client{sdk: sdk, model: o.model, logger: o.logger}, nil
}

// Model returns the chat model this client requests.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the raw reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	completion, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(openai.ChatModel(c.model)),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		}),
	})
	if err != nil {
		return "", fmt.Errorf("llm request: %w", asHTTPError(err))
	}

	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := completion.Choices[0].Message.Content
	c.logger.Debug("llm reply received",
		"model", c.model,
		"duration", time.Since(start),
		"chars", len(content),
	)
	return content, nil
}

// Query sends prompt and returns the reply split into lines.
func (c *Client) Query(ctx context.Context, prompt string) ([]string, error) {
	content, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return SplitLines(content), nil
}

// asHTTPError converts SDK status errors into model.HTTPError so that retry
// logic can classify them. Other errors pass through unchanged.
func asHTTPError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	var retryAfter time.Duration
	if apiErr.Response != nil {
		retryAfter = model.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return &model.HTTPError{StatusCode: apiErr.StatusCode, RetryAfter: retryAfter, Err: err}
}

// normalizeBaseURL makes sure relative request paths resolve under baseURL
// instead of replacing its last segment.
func normalizeBaseURL(baseURL string) string {
	if strings.HasSuffix(baseURL, "/") {
		return baseURL
	}
	return baseURL + "/"
}
