package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcl-research/rcl/internal/config"
	"github.com/rcl-research/rcl/internal/llm"
	"github.com/rcl-research/rcl/internal/model"
	"github.com/rcl-research/rcl/internal/modelserver"
	"github.com/rcl-research/rcl/internal/notifier"
	"github.com/rcl-research/rcl/internal/ratelimit"
	"github.com/rcl-research/rcl/internal/retry"
	"github.com/rcl-research/rcl/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "rcl",
	Short:         "Query an LLM endpoint and fine-tune text classifiers",
	Long:          "rcl sends prompts to an OpenAI-compatible chat endpoint and drives BERT-style classifiers hosted on a model server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: RCL_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > RCL_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("RCL_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// Logs go to stderr so that stdout stays clean for query lines and CSV output.
func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// mustLoad loads the config or exits, logging the failure.
func mustLoad(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.RunNotifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// openStore returns the SQLite run store, or a NopStore in dry-run mode.
// The returned func closes the store.
func openStore(cfg *config.Config, dryRun bool, logger *slog.Logger) (model.RunStore, func(), error) {
	if dryRun {
		logger.Info("dry-run mode enabled, run will not be saved")
		return store.NewNopStore(), func() {}, nil
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func newModelServer(cfg *config.Config, logger *slog.Logger) *modelserver.Client {
	policy := retry.Policy{MaxRetries: 2, BaseDelay: 2 * time.Second}
	httpClient := &http.Client{Timeout: cfg.Classifier.Timeout}
	return modelserver.NewClient(cfg.Classifier.ServerURL, httpClient, policy, logger)
}

// newQuerier builds the LLM client wrapped with host-keyed rate limiting and
// retries. Each retry attempt goes through the limiter.
func newQuerier(cfg *config.Config, logger *slog.Logger) (model.Querier, error) {
	client, err := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey,
		llm.WithModel(cfg.LLM.Model),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
		llm.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(cfg.LLM.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse llm.base_url: %w", err)
	}
	limiter := ratelimit.NewLimiter(cfg.LLM.MinDelay)

	var q model.Querier = client
	q = ratelimit.NewRateLimitedQuerier(q, limiter, u.Host)
	q = retry.NewRetryQuerier(q, cfg.LLM.MaxRetries, cfg.LLM.RetryBaseDelay, logger)
	return q, nil
}
