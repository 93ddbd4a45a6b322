package modelserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rcl-research/rcl/internal/classifier"
)

// Ensure the remote types satisfy the classifier's interfaces.
var (
	_ classifier.Tokenizer = (*Tokenizer)(nil)
	_ classifier.Model     = (*Model)(nil)
)

// Tokenizer encodes texts with the server-side pretrained tokenizer.
type Tokenizer struct {
	client *Client
	model  string
}

// Encode pads and truncates every text to maxLength tokens on the server.
func (t *Tokenizer) Encode(ctx context.Context, texts []string, maxLength int) (classifier.Encoding, error) {
	req := tokenizeRequest{Model: t.model, Texts: texts, MaxLength: maxLength}
	var resp tokenizeResponse
	if err := t.client.doIdempotent(ctx, "tokenize", http.MethodPost, "/tokenize", req, &resp); err != nil {
		return classifier.Encoding{}, fmt.Errorf("tokenize %d texts: %w", len(texts), err)
	}
	return classifier.Encoding{InputIDs: resp.InputIDs, AttentionMask: resp.AttentionMask}, nil
}

// Model is a handle to a model instance living on the server.
type Model struct {
	client    *Client
	name      string
	handle    string
	numLabels int
}

// Name is the pretrained model name the instance was loaded from.
func (m *Model) Name() string { return m.name }

// Handle is the server-side identifier of this instance.
func (m *Model) Handle() string { return m.handle }

func (m *Model) NumLabels() int { return m.numLabels }

func (m *Model) path(action string) string {
	return "/models/" + url.PathEscape(m.handle) + "/" + action
}

func (m *Model) Summary(ctx context.Context) (string, error) {
	var resp summaryResponse
	if err := m.client.doIdempotent(ctx, "summary", http.MethodGet, m.path("summary"), nil, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

func (m *Model) Compile(ctx context.Context, cfg classifier.TrainingConfig) error {
	req := compileRequest{
		Optimizer: optimizerSpec{Name: cfg.Optimizer.Name, LearningRate: cfg.Optimizer.LearningRate},
		Loss:      lossSpec{Name: cfg.Loss.Name, FromLogits: cfg.Loss.FromLogits},
		Metrics:   cfg.Metrics,
	}
	return m.client.do(ctx, http.MethodPost, m.path("compile"), req, nil)
}

func (m *Model) TrainEpoch(ctx context.Context, req classifier.EpochRequest) (map[string]float64, error) {
	body := trainEpochRequest{
		Epoch:        req.Epoch,
		LearningRate: req.LearningRate,
		BatchSize:    req.BatchSize,
		ClassWeight:  req.ClassWeight,
		Train:        toPayload(req.Train),
	}
	if req.Validation != nil {
		v := toPayload(*req.Validation)
		body.Validation = &v
	}

	var resp trainEpochResponse
	if err := m.client.do(ctx, http.MethodPost, m.path("train_epoch"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Metrics) == 0 {
		return nil, errors.New("model server returned no epoch metrics")
	}
	return resp.Metrics, nil
}

func (m *Model) Predict(ctx context.Context, batch classifier.Batch, batchSize int) ([][]float64, error) {
	req := predictRequest{
		InputIDs:      batch.InputIDs,
		AttentionMask: batch.AttentionMask,
		BatchSize:     batchSize,
	}
	var resp predictResponse
	if err := m.client.doIdempotent(ctx, "predict", http.MethodPost, m.path("predict"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Logits, nil
}

func toPayload(b classifier.Batch) batchPayload {
	return batchPayload{InputIDs: b.InputIDs, AttentionMask: b.AttentionMask, Labels: b.Labels}
}
