package notifier

import (
	"log/slog"

	"github.com/rcl-research/rcl/internal/model"
)

// Ensure LogNotifier implements model.RunNotifier.
var _ model.RunNotifier = (*LogNotifier)(nil)

// LogNotifier writes finished runs to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each run via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyRun logs the run with its ID, model, epoch count and the final value
// of every recorded metric. Returns nil (stdout logging does not fail).
func (n *LogNotifier) NotifyRun(run model.Run) error {
	args := []any{"run_id", run.ID, "model", run.ModelName, "epochs", run.Epochs}
	for _, name := range run.History.Metrics() {
		if v, ok := run.History.Last(name); ok {
			args = append(args, name, v)
		}
	}
	n.logger.Info("training run complete", args...)
	return nil
}
