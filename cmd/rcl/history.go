package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcl-research/rcl/internal/model"
	"github.com/rcl-research/rcl/internal/plot"
	"github.com/rcl-research/rcl/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Plot the training history of a stored run",
	Long:  "Opens an interactive chart of every metric series of a run (the latest run when no ID is given). Use --static to print the chart instead.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var historyStatic bool

func init() {
	historyCmd.Flags().BoolVar(&historyStatic, "static", false, "print the chart and exit")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoad(logger)

	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	var run *model.Run
	if len(args) == 1 {
		run, err = s.GetRun(args[0])
	} else {
		run, err = latestRun(s)
	}
	if err != nil {
		logger.Error("failed to load run", "error", err)
		os.Exit(1)
	}

	if historyStatic {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s (%s, %d epochs)\n", run.ID, run.ModelName, run.Epochs)
		return plot.PlotHistory(cmd.OutOrStdout(), run.History)
	}
	return plot.Show(run.History)
}

func latestRun(s model.RunStore) (*model.Run, error) {
	runs, err := s.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, store.ErrRunNotFound
	}
	return &runs[0], nil
}
