package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [prompt]",
	Short: "Send a prompt and print the reply line by line",
	Long:  "Sends the prompt (joined args, or stdin when none are given) to the configured chat endpoint and prints each reply line.",
	RunE:  runQuery,
}

var queryNumbered bool

func init() {
	queryCmd.Flags().BoolVarP(&queryNumbered, "number", "n", false, "prefix each line with its index")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoad(logger)
	if err := cfg.RequireLLM(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	q, err := newQuerier(cfg, logger)
	if err != nil {
		logger.Error("failed to build llm client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lines, err := q.Query(ctx, prompt)
	if err != nil {
		logger.Error("query failed", "model", cfg.LLM.Model, "error", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()
	for i, line := range lines {
		if queryNumbered {
			fmt.Fprintf(out, "%3d  %s\n", i, line)
			continue
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	prompt := strings.TrimRight(string(data), "\n")
	if prompt == "" {
		return "", fmt.Errorf("empty prompt: pass it as arguments or on stdin")
	}
	return prompt, nil
}
