package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcl-research/rcl/internal/model"
	"github.com/rcl-research/rcl/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored training runs",
	Long:  "Prints a table of stored runs, newest first, with the final loss and val_loss of each.",
	RunE:  runRuns,
}

var runsLimit int

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show (0 for all)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	runs, err := s.ListRuns(runsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list runs: %v\n", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-22s %6s %6s %9s %9s  %s\n", "Run", "Model", "Labels", "Epochs", "Loss", "Val loss", "Created")
	fmt.Fprintln(out, strings.Repeat("─", 118))
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-22s %6d %6d %9s %9s  %s\n",
			r.ID, r.ModelName, r.NumLabels, r.Epochs,
			finalValue(r, "loss"), finalValue(r, "val_loss"),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}

	fmt.Fprintf(out, "\nTotal: %d runs\n", len(runs))
	return nil
}

func finalValue(r model.Run, metric string) string {
	v, ok := r.History.Last(metric)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
