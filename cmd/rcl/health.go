package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the model server is reachable",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoad(logger)
	if err := cfg.RequireClassifier(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	h, err := newModelServer(cfg, logger).Health(ctx)
	if err != nil {
		logger.Error("model server unhealthy", "url", cfg.Classifier.ServerURL, "error", err)
		os.Exit(1)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nmodel loaded: %t\n", h.Status, h.ModelLoaded)
	return nil
}
