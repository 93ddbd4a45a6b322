package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcl-research/rcl/internal/classifier"
	"github.com/rcl-research/rcl/internal/dataset"
	"github.com/rcl-research/rcl/internal/modelserver"
	"github.com/rcl-research/rcl/internal/store"
)

var predictCmd = &cobra.Command{
	Use:   "predict <input.csv>",
	Short: "Predict a label for every text in a CSV",
	Long: "Reads a CSV with a text column and writes text,label rows. With --run the fine-tuned " +
		"model of a stored run is used; otherwise a fresh pretrained model is loaded.",
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

var (
	predictRun    string
	predictOutput string
)

func init() {
	predictCmd.Flags().StringVar(&predictRun, "run", "", "ID of a stored run whose model to use")
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", "", "write predictions to this file instead of stdout")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoad(logger)
	if err := cfg.RequireClassifier(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	input, err := dataset.Load(args[0])
	if err != nil {
		logger.Error("failed to load input", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := newModelServer(cfg, logger)
	modelName := cfg.Classifier.ModelName
	var m *modelserver.Model
	if predictRun != "" {
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		run, err := s.GetRun(predictRun)
		s.Close()
		if err != nil {
			logger.Error("failed to load run", "run_id", predictRun, "error", err)
			os.Exit(1)
		}
		modelName = run.ModelName
		m, err = server.Attach(ctx, run.ModelName, run.Handle, run.NumLabels)
		if err != nil {
			logger.Error("failed to attach to trained model", "run_id", run.ID, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no --run given, predicting with an untrained classification head")
		m, err = server.LoadModel(ctx, modelName, cfg.Classifier.NumLabels)
		if err != nil {
			logger.Error("failed to load model", "error", err)
			os.Exit(1)
		}
	}

	clf, err := classifier.New(server.Tokenizer(modelName), m,
		classifier.WithVerbose(false),
		classifier.WithMaxLength(cfg.Classifier.MaxLength),
		classifier.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build classifier", "error", err)
		os.Exit(1)
	}

	labels, err := clf.Predict(ctx, input.Texts)
	if err != nil {
		logger.Error("predict failed", "error", err)
		os.Exit(1)
	}

	var out io.Writer = cmd.OutOrStdout()
	if predictOutput != "" {
		f, err := os.Create(predictOutput)
		if err != nil {
			logger.Error("failed to create output file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := dataset.WritePredictions(out, input.Texts, labels); err != nil {
		logger.Error("failed to write predictions", "error", err)
		os.Exit(1)
	}

	if input.Labelled() {
		report, err := classifier.Evaluate(input.Labels, labels, clf.NumLabels())
		if err != nil {
			logger.Warn("input labels could not be scored", "error", err)
		} else {
			logger.Info("scored against input labels", "accuracy", report.Accuracy, "macro_f1", report.MacroF1)
		}
	}
	logger.Info("predictions written", "count", len(labels))
	return nil
}
