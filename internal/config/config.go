package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the rcl tool.
type Config struct {
	LLM          LLMConfig
	Classifier   ClassifierConfig
	Store        StoreConfig
	Notification NotificationConfig
}

// LLMConfig controls the chat-completions endpoint used by `rcl query`.
type LLMConfig struct {
	BaseURL        string
	APIKey         string // expanded from env var by Load
	Model          string
	Timeout        time.Duration // per-request timeout
	MaxRetries     int
	RetryBaseDelay time.Duration
	MinDelay       time.Duration // minimum gap between requests to the same host
}

// ClassifierConfig controls the model server and the training loop.
type ClassifierConfig struct {
	ServerURL     string
	ModelName     string
	NumLabels     int
	MaxLength     int
	Verbose       bool
	Timeout       time.Duration
	Epochs        int
	BatchSize     int
	LearningRate  float64
	EarlyStopping EarlyStoppingConfig
	ReduceLR      ReduceLRConfig
}

// EarlyStoppingConfig mirrors classifier.EarlyStopping.
type EarlyStoppingConfig struct {
	Monitor  string `yaml:"monitor"`
	Patience int    `yaml:"patience"`
}

// ReduceLRConfig mirrors classifier.ReduceLROnPlateau.
type ReduceLRConfig struct {
	Monitor  string  `yaml:"monitor"`
	Factor   float64 `yaml:"factor"`
	Patience int     `yaml:"patience"`
	MinLR    float64 `yaml:"min_lr"`
}

// StoreConfig points at the SQLite run database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

const (
	defaultLLMModel      = "openchat_3.5"
	defaultModelName     = "bert-base-uncased"
	defaultStorePath     = "rcl.db"
	slackWebhookPrefix   = "https://hooks.slack.com/"
	defaultMonitorMetric = "val_loss"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	LLM          rawLLMConfig        `yaml:"llm"`
	Classifier   rawClassifierConfig `yaml:"classifier"`
	Store        StoreConfig         `yaml:"store"`
	Notification NotificationConfig  `yaml:"notification"`
}

type rawLLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Timeout        string `yaml:"timeout"`
	MaxRetries     *int   `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	MinDelay       string `yaml:"min_delay"`
}

type rawClassifierConfig struct {
	ServerURL     string              `yaml:"server_url"`
	ModelName     string              `yaml:"model_name"`
	NumLabels     int                 `yaml:"num_labels"`
	MaxLength     int                 `yaml:"max_length"`
	Verbose       *bool               `yaml:"verbose"`
	Timeout       string              `yaml:"timeout"`
	Epochs        int                 `yaml:"epochs"`
	BatchSize     int                 `yaml:"batch_size"`
	LearningRate  float64             `yaml:"learning_rate"`
	EarlyStopping EarlyStoppingConfig `yaml:"early_stopping"`
	ReduceLR      ReduceLRConfig      `yaml:"reduce_lr"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. Missing fields take their defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Callback sections are pre-filled so a partial block keeps the other defaults.
	raw := rawConfig{Classifier: rawClassifierConfig{
		EarlyStopping: EarlyStoppingConfig{Monitor: defaultMonitorMetric, Patience: 3},
		ReduceLR:      ReduceLRConfig{Monitor: defaultMonitorMetric, Factor: 0.2, Patience: 2},
	}}
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	llmTimeout, err := parseDuration("llm.timeout", raw.LLM.Timeout, 60*time.Second)
	if err != nil {
		return nil, err
	}
	retryBase, err := parseDuration("llm.retry_base_delay", raw.LLM.RetryBaseDelay, time.Second)
	if err != nil {
		return nil, err
	}
	minDelay, err := parseDuration("llm.min_delay", raw.LLM.MinDelay, 0)
	if err != nil {
		return nil, err
	}
	serverTimeout, err := parseDuration("classifier.timeout", raw.Classifier.Timeout, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	maxRetries := 3
	if raw.LLM.MaxRetries != nil {
		maxRetries = *raw.LLM.MaxRetries
	}
	verbose := true
	if raw.Classifier.Verbose != nil {
		verbose = *raw.Classifier.Verbose
	}

	es := raw.Classifier.EarlyStopping
	es.Monitor = orDefault(es.Monitor, defaultMonitorMetric)
	rl := raw.Classifier.ReduceLR
	rl.Monitor = orDefault(rl.Monitor, defaultMonitorMetric)

	cfg := &Config{
		LLM: LLMConfig{
			BaseURL:        raw.LLM.BaseURL,
			APIKey:         raw.LLM.APIKey,
			Model:          orDefault(raw.LLM.Model, defaultLLMModel),
			Timeout:        llmTimeout,
			MaxRetries:     maxRetries,
			RetryBaseDelay: retryBase,
			MinDelay:       minDelay,
		},
		Classifier: ClassifierConfig{
			ServerURL:     raw.Classifier.ServerURL,
			ModelName:     orDefault(raw.Classifier.ModelName, defaultModelName),
			NumLabels:     orDefaultInt(raw.Classifier.NumLabels, 2),
			MaxLength:     orDefaultInt(raw.Classifier.MaxLength, 128),
			Verbose:       verbose,
			Timeout:       serverTimeout,
			Epochs:        orDefaultInt(raw.Classifier.Epochs, 10),
			BatchSize:     orDefaultInt(raw.Classifier.BatchSize, 8),
			LearningRate:  raw.Classifier.LearningRate,
			EarlyStopping: es,
			ReduceLR:      rl,
		},
		Store: StoreConfig{Path: orDefault(raw.Store.Path, defaultStorePath)},
		Notification: NotificationConfig{
			Type:       orDefault(raw.Notification.Type, "log"),
			WebhookURL: raw.Notification.WebhookURL,
		},
	}
	if cfg.Classifier.LearningRate == 0 {
		cfg.Classifier.LearningRate = 3e-5
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireLLM reports whether the llm section has enough to build a client.
func (c *Config) RequireLLM() error {
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// RequireClassifier reports whether the model server is configured.
func (c *Config) RequireClassifier() error {
	if c.Classifier.ServerURL == "" {
		return fmt.Errorf("classifier.server_url is required")
	}
	return nil
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

func validate(cfg *Config) error {
	if cfg.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.RetryBaseDelay <= 0 {
		return fmt.Errorf("llm.retry_base_delay must be positive, got %v", cfg.LLM.RetryBaseDelay)
	}
	if cfg.LLM.MinDelay < 0 {
		return fmt.Errorf("llm.min_delay must not be negative, got %v", cfg.LLM.MinDelay)
	}

	c := cfg.Classifier
	if c.NumLabels < 1 {
		return fmt.Errorf("classifier.num_labels must be at least 1, got %d", c.NumLabels)
	}
	if c.MaxLength < 1 {
		return fmt.Errorf("classifier.max_length must be positive, got %d", c.MaxLength)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("classifier.timeout must be positive, got %v", c.Timeout)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("classifier.epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("classifier.batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate < 0 {
		return fmt.Errorf("classifier.learning_rate must not be negative, got %g", c.LearningRate)
	}
	if c.EarlyStopping.Patience < 0 {
		return fmt.Errorf("classifier.early_stopping.patience must not be negative, got %d", c.EarlyStopping.Patience)
	}
	if c.ReduceLR.Factor <= 0 || c.ReduceLR.Factor >= 1 {
		return fmt.Errorf("classifier.reduce_lr.factor must be in (0, 1), got %g", c.ReduceLR.Factor)
	}
	if c.ReduceLR.Patience < 0 {
		return fmt.Errorf("classifier.reduce_lr.patience must not be negative, got %d", c.ReduceLR.Patience)
	}
	if c.ReduceLR.MinLR < 0 {
		return fmt.Errorf("classifier.reduce_lr.min_lr must not be negative, got %g", c.ReduceLR.MinLR)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	return nil
}
