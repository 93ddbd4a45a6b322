package classifier

import (
	"io"
	"log/slog"
	"math"
	"strings"
)

// TrainingControl is the mutable training state callbacks may adjust.
type TrainingControl struct {
	LearningRate float64
	StopTraining bool
}

// Callback observes training. OnTrainBegin resets any per-run state.
type Callback interface {
	OnTrainBegin(ctl *TrainingControl)
	OnEpochEnd(epoch int, logs map[string]float64, ctl *TrainingControl)
}

// DefaultCallbacks stops after 3 epochs without val_loss improvement and
// cuts the learning rate to a fifth after 2.
func DefaultCallbacks(logger *slog.Logger) []Callback {
	es := NewEarlyStopping("val_loss", 3)
	es.Logger = logger
	rl := NewReduceLROnPlateau("val_loss", 0.2, 2)
	rl.Logger = logger
	return []Callback{es, rl}
}

// monitorMode resolves "auto" to "max" for accuracy-like monitors and "min" otherwise.
func monitorMode(mode, monitor string) string {
	switch mode {
	case "min", "max":
		return mode
	}
	if strings.Contains(monitor, "acc") {
		return "max"
	}
	return "min"
}

// plateau tracks the best value of one monitored metric.
type plateau struct {
	mode     string
	minDelta float64
	best     float64
}

func (p *plateau) reset(mode, monitor string, minDelta float64) {
	p.mode = monitorMode(mode, monitor)
	p.minDelta = math.Abs(minDelta)
	if p.mode == "max" {
		p.best = math.Inf(-1)
	} else {
		p.best = math.Inf(1)
	}
}

func (p *plateau) improved(current float64) bool {
	if p.mode == "max" {
		return current > p.best+p.minDelta
	}
	return current < p.best-p.minDelta
}

func discardIfNil(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// EarlyStopping stops training once Monitor fails to improve for Patience epochs.
type EarlyStopping struct {
	Monitor  string
	Patience int
	MinDelta float64
	Mode     string // "min", "max", or "auto"
	Logger   *slog.Logger

	// StoppedEpoch is the zero-based epoch training stopped at, or -1.
	StoppedEpoch int

	plateau plateau
	wait    int
	warned  bool
}

// NewEarlyStopping watches monitor in auto mode with zero min delta.
func NewEarlyStopping(monitor string, patience int) *EarlyStopping {
	return &EarlyStopping{Monitor: monitor, Patience: patience, Mode: "auto", StoppedEpoch: -1}
}

func (e *EarlyStopping) OnTrainBegin(_ *TrainingControl) {
	e.plateau.reset(e.Mode, e.Monitor, e.MinDelta)
	e.wait = 0
	e.warned = false
	e.StoppedEpoch = -1
}

func (e *EarlyStopping) OnEpochEnd(epoch int, logs map[string]float64, ctl *TrainingControl) {
	current, ok := logs[e.Monitor]
	if !ok {
		if !e.warned {
			discardIfNil(e.Logger).Warn("early stopping monitor not in epoch metrics, skipping", "monitor", e.Monitor)
			e.warned = true
		}
		return
	}

	if e.plateau.improved(current) {
		e.plateau.best = current
		e.wait = 0
		return
	}

	e.wait++
	if e.wait >= e.Patience {
		ctl.StopTraining = true
		e.StoppedEpoch = epoch
	}
}

// ReduceLROnPlateau multiplies the learning rate by Factor once Monitor
// fails to improve for Patience epochs, never going below MinLR.
type ReduceLROnPlateau struct {
	Monitor  string
	Factor   float64
	Patience int
	MinDelta float64
	MinLR    float64
	Cooldown int
	Mode     string
	Logger   *slog.Logger

	plateau  plateau
	wait     int
	cooldown int
	warned   bool
}

// NewReduceLROnPlateau watches monitor in auto mode with a 1e-4 min delta.
func NewReduceLROnPlateau(monitor string, factor float64, patience int) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		Monitor:  monitor,
		Factor:   factor,
		Patience: patience,
		MinDelta: 1e-4,
		Mode:     "auto",
	}
}

func (r *ReduceLROnPlateau) OnTrainBegin(_ *TrainingControl) {
	r.plateau.reset(r.Mode, r.Monitor, r.MinDelta)
	r.wait = 0
	r.cooldown = 0
	r.warned = false
}

func (r *ReduceLROnPlateau) OnEpochEnd(epoch int, logs map[string]float64, ctl *TrainingControl) {
	current, ok := logs[r.Monitor]
	if !ok {
		if !r.warned {
			discardIfNil(r.Logger).Warn("learning rate monitor not in epoch metrics, skipping", "monitor", r.Monitor)
			r.warned = true
		}
		return
	}

	if r.cooldown > 0 {
		r.cooldown--
		r.wait = 0
	}

	if r.plateau.improved(current) {
		r.plateau.best = current
		r.wait = 0
		return
	}
	if r.cooldown > 0 {
		return
	}

	r.wait++
	if r.wait < r.Patience {
		return
	}

	old := ctl.LearningRate
	if old > r.MinLR {
		ctl.LearningRate = math.Max(old*r.Factor, r.MinLR)
		discardIfNil(r.Logger).Info("reducing learning rate",
			"epoch", epoch+1,
			"from", old,
			"to", ctl.LearningRate,
		)
		r.cooldown = r.Cooldown
		r.wait = 0
	}
}
