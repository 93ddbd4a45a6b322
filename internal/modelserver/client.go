// Package modelserver is an HTTP client for the model-serving backend that
// hosts pretrained tokenizers and sequence-classification models.
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rcl-research/rcl/internal/model"
	"github.com/rcl-research/rcl/internal/retry"
)

// maxErrorBody caps how much of an error response is quoted in errors.
const maxErrorBody = 4 << 10

// HealthResponse is the backend's /health payload.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Client talks to one model server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL. Idempotent calls
// (health, tokenize, summary, predict) are retried according to policy;
// training and compile calls are never retried.
func NewClient(baseURL string, httpClient *http.Client, policy retry.Policy, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	policy.Logger = logger
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		policy:     policy,
		logger:     logger,
	}
}

// Health checks the model server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doIdempotent(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tokenizer returns the server-side tokenizer for the named pretrained model.
func (c *Client) Tokenizer(modelName string) *Tokenizer {
	return &Tokenizer{client: c, model: modelName}
}

// LoadModel instantiates the named pretrained model with a fresh
// classification head of numLabels outputs.
func (c *Client) LoadModel(ctx context.Context, modelName string, numLabels int) (*Model, error) {
	req := loadRequest{Model: modelName, NumLabels: numLabels}
	var resp loadResponse
	if err := c.do(ctx, http.MethodPost, "/models", req, &resp); err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelName, err)
	}
	if resp.Handle == "" {
		return nil, fmt.Errorf("load model %s: server returned no handle", modelName)
	}
	if resp.NumLabels != numLabels {
		return nil, fmt.Errorf("load model %s: server configured %d labels, asked for %d", modelName, resp.NumLabels, numLabels)
	}

	c.logger.Info("model loaded", "model", modelName, "handle", resp.Handle, "num_labels", numLabels)
	return &Model{client: c, name: modelName, handle: resp.Handle, numLabels: numLabels}, nil
}

// Attach binds to a model instance the server already holds, such as one
// fine-tuned by an earlier run. The handle is checked with a summary request.
func (c *Client) Attach(ctx context.Context, modelName, handle string, numLabels int) (*Model, error) {
	if handle == "" {
		return nil, fmt.Errorf("attach model %s: empty handle", modelName)
	}
	m := &Model{client: c, name: modelName, handle: handle, numLabels: numLabels}
	if _, err := m.Summary(ctx); err != nil {
		return nil, fmt.Errorf("attach model %s (%s): %w", modelName, handle, err)
	}
	return m, nil
}

func (c *Client) doIdempotent(ctx context.Context, name, method, path string, in, out any) error {
	_, err := retry.Do(ctx, c.policy, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, method, path, in, out)
	})
	return err
}

// do sends in as JSON (when non-nil) and decodes the response into out.
// Non-2xx responses become *model.HTTPError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("model server call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("model server %s %s: %s", method, path, strings.TrimSpace(string(msg))),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
