// Package classifier sequences tokenization, fine-tuning, and prediction for a
// pretrained transformer sequence-classification model. The tokenizer and the
// model weights live behind the Tokenizer and Model interfaces; this package
// owns shapes, class balancing, the epoch loop, and arg-max decoding.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rcl-research/rcl/internal/model"
)

// DefaultMaxLength is the padded/truncated token length of every example.
const DefaultMaxLength = 128

const (
	defaultEpochs       = 10
	defaultBatchSize    = 8
	defaultPredictBatch = 32
)

var (
	// ErrNotCompiled is returned by Fit before Compile has been called.
	ErrNotCompiled = errors.New("classifier is not compiled")
	// ErrLabelOutOfRange is returned for labels outside [0, NumLabels).
	ErrLabelOutOfRange = errors.New("label out of range")
	// ErrShapeMismatch is returned when inputs, labels, or backend outputs disagree in size.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Encoding is the tokenizer's output for a batch of texts.
type Encoding struct {
	InputIDs      [][]int32
	AttentionMask [][]int32
}

// Tokenizer turns raw texts into token ids and attention masks.
type Tokenizer interface {
	Encode(ctx context.Context, texts []string, maxLength int) (Encoding, error)
}

// Batch is a preprocessed set of examples: every row is exactly MaxLength wide.
// Labels is nil for unlabeled batches.
type Batch struct {
	InputIDs      [][]int32
	AttentionMask [][]int32
	Labels        []int
}

// Len is the number of examples in the batch.
func (b Batch) Len() int { return len(b.InputIDs) }

// EpochRequest is everything the model needs to run one training epoch.
type EpochRequest struct {
	Epoch        int
	LearningRate float64
	BatchSize    int
	ClassWeight  map[int]float64
	Train        Batch
	Validation   *Batch
}

// Model is a pretrained sequence-classification model that can be compiled,
// trained one epoch at a time, and queried for logits.
type Model interface {
	NumLabels() int
	Summary(ctx context.Context) (string, error)
	Compile(ctx context.Context, cfg TrainingConfig) error
	TrainEpoch(ctx context.Context, req EpochRequest) (map[string]float64, error)
	Predict(ctx context.Context, batch Batch, batchSize int) ([][]float64, error)
}

// State tracks the wrapper's lifecycle.
type State int

const (
	StateConstructed State = iota
	StateCompiled
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateCompiled:
		return "compiled"
	case StateTrained:
		return "trained"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Classifier wraps a tokenizer and a model. It is not safe for concurrent use.
type Classifier struct {
	tokenizer Tokenizer
	model     Model
	verbose   bool
	maxLength int
	logger    *slog.Logger

	state        State
	config       TrainingConfig
	classWeights map[int]float64
	history      model.History
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithVerbose logs the model summary on Compile and per-epoch metrics at info level.
func WithVerbose(v bool) Option {
	return func(c *Classifier) { c.verbose = v }
}

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) Option {
	return func(c *Classifier) { c.maxLength = n }
}

// WithLogger sets the logger; nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New builds a classifier around tok and m.
func New(tok Tokenizer, m Model, opts ...Option) (*Classifier, error) {
	if tok == nil || m == nil {
		return nil, errors.New("classifier needs both a tokenizer and a model")
	}
	if m.NumLabels() < 1 {
		return nil, fmt.Errorf("model reports %d labels, need at least 1", m.NumLabels())
	}

	c := &Classifier{
		tokenizer: tok,
		model:     m,
		verbose:   true,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxLength < 1 {
		return nil, fmt.Errorf("max length must be positive, got %d", c.maxLength)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Classifier) State() State { return c.state }

// NumLabels is the model's output width.
func (c *Classifier) NumLabels() int { return c.model.NumLabels() }

// MaxLength is the fixed token length of every preprocessed row.
func (c *Classifier) MaxLength() int { return c.maxLength }

// History returns the metrics recorded by the last Fit.
func (c *Classifier) History() model.History { return c.history }

// ClassWeights returns a copy of the weights used by the last Fit.
func (c *Classifier) ClassWeights() map[int]float64 {
	out := make(map[int]float64, len(c.classWeights))
	for k, v := range c.classWeights {
		out[k] = v
	}
	return out
}

// Compile binds the training configuration. It may be called again to
// reconfigure; a trained classifier stays trained.
func (c *Classifier) Compile(ctx context.Context, cfg TrainingConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	if err := c.model.Compile(ctx, cfg); err != nil {
		return fmt.Errorf("compile model: %w", err)
	}
	c.config = cfg
	if c.state == StateConstructed {
		c.state = StateCompiled
	}

	if c.verbose {
		summary, err := c.model.Summary(ctx)
		if err != nil {
			return fmt.Errorf("model summary: %w", err)
		}
		c.logger.Info("model compiled",
			"optimizer", cfg.Optimizer.Name,
			"learning_rate", cfg.Optimizer.LearningRate,
			"loss", cfg.Loss.Name,
			"metrics", cfg.Metrics,
		)
		c.logger.Info("model summary", "summary", summary)
	}
	return nil
}

// Dataset is a set of texts with their labels.
type Dataset struct {
	Texts  []string
	Labels []int
}

// FitOptions controls a training run. Zero values take the defaults: 10
// epochs, batch size 8, and DefaultCallbacks. Pass a non-nil empty Callbacks
// slice to train without callbacks.
type FitOptions struct {
	Epochs     int
	BatchSize  int
	Callbacks  []Callback
	Validation *Dataset
}

// Fit fine-tunes the model on x/y. Class weights are balanced over the
// observed labels. It returns the per-epoch history; on error the history
// holds the epochs that completed.
func (c *Classifier) Fit(ctx context.Context, x []string, y []int, opts FitOptions) (model.History, error) {
	if c.state == StateConstructed {
		return model.History{}, ErrNotCompiled
	}
	if len(x) == 0 {
		return model.History{}, errors.New("fit needs at least one example")
	}
	if y == nil {
		return model.History{}, fmt.Errorf("%w: fit needs labels", ErrShapeMismatch)
	}

	epochs := opts.Epochs
	if epochs <= 0 {
		epochs = defaultEpochs
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	callbacks := opts.Callbacks
	if callbacks == nil {
		callbacks = DefaultCallbacks(c.logger)
	}

	train, err := c.preprocess(ctx, x, y)
	if err != nil {
		return model.History{}, fmt.Errorf("preprocess training data: %w", err)
	}

	var validation *Batch
	if opts.Validation != nil {
		if opts.Validation.Labels == nil {
			return model.History{}, fmt.Errorf("%w: validation data needs labels", ErrShapeMismatch)
		}
		vb, err := c.preprocess(ctx, opts.Validation.Texts, opts.Validation.Labels)
		if err != nil {
			return model.History{}, fmt.Errorf("preprocess validation data: %w", err)
		}
		validation = &vb
	}

	c.classWeights = ClassWeights(y)

	ctl := &TrainingControl{LearningRate: c.config.Optimizer.LearningRate}
	for _, cb := range callbacks {
		cb.OnTrainBegin(ctl)
	}

	var history model.History
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return history, fmt.Errorf("fit cancelled at epoch %d: %w", epoch+1, err)
		}

		logs, err := c.model.TrainEpoch(ctx, EpochRequest{
			Epoch:        epoch,
			LearningRate: ctl.LearningRate,
			BatchSize:    batchSize,
			ClassWeight:  c.ClassWeights(),
			Train:        train,
			Validation:   validation,
		})
		if err != nil {
			return history, fmt.Errorf("train epoch %d: %w", epoch+1, err)
		}
		history.Append(logs)
		c.history = history
		c.state = StateTrained

		c.logEpoch(epoch+1, epochs, logs, ctl.LearningRate)

		for _, cb := range callbacks {
			cb.OnEpochEnd(epoch, logs, ctl)
		}
		if ctl.StopTraining {
			c.logger.Info("training stopped early", "epoch", epoch+1, "epochs", epochs)
			break
		}
	}

	return history, nil
}

func (c *Classifier) logEpoch(epoch, total int, logs map[string]float64, lr float64) {
	var h model.History
	h.Append(logs)
	args := []any{"epoch", epoch, "of", total, "learning_rate", lr}
	for _, name := range h.Metrics() {
		args = append(args, name, logs[name])
	}
	if c.verbose {
		c.logger.Info("epoch complete", args...)
		return
	}
	c.logger.Debug("epoch complete", args...)
}

// Predict returns the arg-max label for each text. Predicting before
// training uses the pretrained weights as they are.
func (c *Classifier) Predict(ctx context.Context, x []string) ([]int, error) {
	if len(x) == 0 {
		return []int{}, nil
	}

	batch, err := c.preprocess(ctx, x, nil)
	if err != nil {
		return nil, fmt.Errorf("preprocess inputs: %w", err)
	}

	logits, err := c.model.Predict(ctx, batch, defaultPredictBatch)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(logits) != len(x) {
		return nil, fmt.Errorf("%w: model returned %d rows for %d inputs", ErrShapeMismatch, len(logits), len(x))
	}

	numLabels := c.model.NumLabels()
	labels := make([]int, len(logits))
	for i, row := range logits {
		if len(row) != numLabels {
			return nil, fmt.Errorf("%w: row %d has %d logits, want %d", ErrShapeMismatch, i, len(row), numLabels)
		}
		labels[i] = argmax(row)
	}
	return labels, nil
}

// argmax returns the index of the largest value; ties go to the lowest index.
func argmax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}
