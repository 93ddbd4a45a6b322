package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func runEpochs(cb Callback, lr float64, monitor string, values []float64) (*TrainingControl, int) {
	ctl := &TrainingControl{LearningRate: lr}
	cb.OnTrainBegin(ctl)
	for i, v := range values {
		cb.OnEpochEnd(i, map[string]float64{monitor: v}, ctl)
		if ctl.StopTraining {
			return ctl, i
		}
	}
	return ctl, len(values) - 1
}

func TestEarlyStopping_StopsAfterPatience(t *testing.T) {
	es := NewEarlyStopping("val_loss", 3)
	ctl, last := runEpochs(es, 1e-3, "val_loss", []float64{0.8, 0.7, 0.71, 0.72, 0.73, 0.5})

	assert.True(t, ctl.StopTraining)
	assert.Equal(t, 4, last)
	assert.Equal(t, 4, es.StoppedEpoch)
}

func TestEarlyStopping_ImprovementResetsWait(t *testing.T) {
	es := NewEarlyStopping("val_loss", 2)
	ctl, _ := runEpochs(es, 1e-3, "val_loss", []float64{0.8, 0.9, 0.7, 0.75, 0.6})

	assert.False(t, ctl.StopTraining)
	assert.Equal(t, -1, es.StoppedEpoch)
}

func TestEarlyStopping_AccuracyMonitorMaximises(t *testing.T) {
	es := NewEarlyStopping("val_sparse_categorical_accuracy", 1)
	ctl, last := runEpochs(es, 1e-3, "val_sparse_categorical_accuracy", []float64{0.5, 0.6, 0.55})

	assert.True(t, ctl.StopTraining)
	assert.Equal(t, 2, last)
}

func TestEarlyStopping_MinDelta(t *testing.T) {
	es := NewEarlyStopping("loss", 1)
	es.MinDelta = 0.05
	ctl, last := runEpochs(es, 1e-3, "loss", []float64{1.0, 0.98})

	assert.True(t, ctl.StopTraining, "a 0.02 drop is below min delta")
	assert.Equal(t, 1, last)
}

func TestEarlyStopping_MissingMonitorIsIgnored(t *testing.T) {
	es := NewEarlyStopping("val_loss", 1)
	ctl, _ := runEpochs(es, 1e-3, "loss", []float64{1, 2, 3, 4})

	assert.False(t, ctl.StopTraining)
}

func TestEarlyStopping_ResetsBetweenRuns(t *testing.T) {
	es := NewEarlyStopping("val_loss", 2)
	runEpochs(es, 1e-3, "val_loss", []float64{0.1, 0.2, 0.3})
	assert.Equal(t, 2, es.StoppedEpoch)

	ctl, _ := runEpochs(es, 1e-3, "val_loss", []float64{5, 4})
	assert.False(t, ctl.StopTraining)
	assert.Equal(t, -1, es.StoppedEpoch)
}

func TestReduceLROnPlateau_ReducesAfterPatience(t *testing.T) {
	rl := NewReduceLROnPlateau("val_loss", 0.2, 2)
	ctl, _ := runEpochs(rl, 1e-3, "val_loss", []float64{0.5, 0.6, 0.6})

	assert.InDelta(t, 2e-4, ctl.LearningRate, 1e-12)
	assert.False(t, ctl.StopTraining)
}

func TestReduceLROnPlateau_RespectsMinLR(t *testing.T) {
	rl := NewReduceLROnPlateau("val_loss", 0.1, 1)
	rl.MinLR = 5e-4
	ctl, _ := runEpochs(rl, 1e-3, "val_loss", []float64{0.5, 0.6, 0.7, 0.8})

	assert.InDelta(t, 5e-4, ctl.LearningRate, 1e-12)
}

func TestReduceLROnPlateau_Cooldown(t *testing.T) {
	rl := NewReduceLROnPlateau("val_loss", 0.5, 1)
	rl.Cooldown = 2
	ctl, _ := runEpochs(rl, 1.0, "val_loss", []float64{0.5, 0.6, 0.6, 0.6, 0.6})

	// Reduce at epoch 1, cool down at epoch 2, reduce again at epoch 3.
	assert.InDelta(t, 0.25, ctl.LearningRate, 1e-12)
}

func TestReduceLROnPlateau_TinyGainsCountAsPlateau(t *testing.T) {
	rl := NewReduceLROnPlateau("val_loss", 0.2, 2)
	ctl, _ := runEpochs(rl, 1e-3, "val_loss", []float64{0.5, 0.49995, 0.49992})

	assert.InDelta(t, 2e-4, ctl.LearningRate, 1e-12)
}

func TestMonitorMode(t *testing.T) {
	assert.Equal(t, "min", monitorMode("auto", "val_loss"))
	assert.Equal(t, "max", monitorMode("auto", "val_accuracy"))
	assert.Equal(t, "min", monitorMode("min", "val_accuracy"))
	assert.Equal(t, "max", monitorMode("max", "loss"))
}
