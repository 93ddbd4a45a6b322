package model

import (
	"context"
	"time"
)

// Run is one completed fine-tuning session of the classifier.
type Run struct {
	ID           string
	ModelName    string
	Handle       string // model-server instance holding the fine-tuned weights
	NumLabels    int
	Epochs       int // epochs actually run; early stopping may cut this short
	ClassWeights map[int]float64
	History      History
	CreatedAt    time.Time
}

// Querier sends a prompt to an LLM and returns the reply split into lines.
type Querier interface {
	Query(ctx context.Context, prompt string) ([]string, error)
}

// RunStore persists training runs.
type RunStore interface {
	SaveRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
}

// RunNotifier announces finished training runs.
type RunNotifier interface {
	NotifyRun(run Run) error
}
