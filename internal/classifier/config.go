package classifier

import "fmt"

// Optimizer names the optimizer and its starting learning rate.
type Optimizer struct {
	Name         string
	LearningRate float64
}

// Loss names the loss function.
type Loss struct {
	Name       string
	FromLogits bool
}

// TrainingConfig is what Compile binds to the model.
type TrainingConfig struct {
	Optimizer Optimizer
	Loss      Loss
	Metrics   []string
}

// DefaultTrainingConfig is Adam at 3e-5 with sparse categorical cross-entropy
// over logits, tracking sparse categorical accuracy.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Optimizer: Optimizer{Name: "adam", LearningRate: 3e-5},
		Loss:      Loss{Name: "sparse_categorical_crossentropy", FromLogits: true},
		Metrics:   []string{"sparse_categorical_accuracy"},
	}
}

func (cfg TrainingConfig) withDefaults() TrainingConfig {
	def := DefaultTrainingConfig()
	if cfg.Optimizer.Name == "" {
		cfg.Optimizer.Name = def.Optimizer.Name
	}
	if cfg.Optimizer.LearningRate == 0 {
		cfg.Optimizer.LearningRate = def.Optimizer.LearningRate
	}
	if cfg.Loss.Name == "" {
		cfg.Loss = def.Loss
	}
	if cfg.Metrics == nil {
		cfg.Metrics = def.Metrics
	}
	return cfg
}

func (cfg TrainingConfig) validate() error {
	if cfg.Optimizer.LearningRate < 0 {
		return fmt.Errorf("learning rate must not be negative, got %g", cfg.Optimizer.LearningRate)
	}
	return nil
}
