package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcl-research/rcl/internal/classifier"
	"github.com/rcl-research/rcl/internal/config"
	"github.com/rcl-research/rcl/internal/dataset"
	"github.com/rcl-research/rcl/internal/model"
	"github.com/rcl-research/rcl/internal/plot"
)

var trainCmd = &cobra.Command{
	Use:   "train <train.csv>",
	Short: "Fine-tune a classifier on a labelled CSV",
	Long: "Loads a pretrained model on the model server, compiles it, and fits it on a text,label CSV. " +
		"The run (history and class weights) is saved to the store and announced through the notifier.",
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

var (
	trainValidation string
	trainEpochs     int
	trainBatchSize  int
	trainDryRun     bool
	trainPlot       bool
)

func init() {
	trainCmd.Flags().StringVar(&trainValidation, "validation", "", "labelled CSV used for val_* metrics and the final report")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "override classifier.epochs")
	trainCmd.Flags().IntVar(&trainBatchSize, "batch-size", 0, "override classifier.batch_size")
	trainCmd.Flags().BoolVar(&trainDryRun, "dry-run", false, "train but do not save the run")
	trainCmd.Flags().BoolVar(&trainPlot, "plot", false, "print the training history chart when done")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoad(logger)
	if err := cfg.RequireClassifier(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	train, err := loadLabelled(args[0])
	if err != nil {
		logger.Error("failed to load training data", "error", err)
		os.Exit(1)
	}
	var validation *classifier.Dataset
	if trainValidation != "" {
		val, err := loadLabelled(trainValidation)
		if err != nil {
			logger.Error("failed to load validation data", "error", err)
			os.Exit(1)
		}
		validation = &classifier.Dataset{Texts: val.Texts, Labels: val.Labels}
	}

	runStore, closeStore, err := openStore(cfg, trainDryRun, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := newModelServer(cfg, logger)
	m, err := server.LoadModel(ctx, cfg.Classifier.ModelName, cfg.Classifier.NumLabels)
	if err != nil {
		logger.Error("failed to load model", "error", err)
		os.Exit(1)
	}
	clf, err := classifier.New(server.Tokenizer(cfg.Classifier.ModelName), m,
		classifier.WithVerbose(cfg.Classifier.Verbose),
		classifier.WithMaxLength(cfg.Classifier.MaxLength),
		classifier.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build classifier", "error", err)
		os.Exit(1)
	}

	tc := classifier.DefaultTrainingConfig()
	tc.Optimizer.LearningRate = cfg.Classifier.LearningRate
	if err := clf.Compile(ctx, tc); err != nil {
		logger.Error("compile failed", "error", err)
		os.Exit(1)
	}

	opts := classifier.FitOptions{
		Epochs:     orInt(trainEpochs, cfg.Classifier.Epochs),
		BatchSize:  orInt(trainBatchSize, cfg.Classifier.BatchSize),
		Callbacks:  callbacksFromConfig(cfg.Classifier, logger),
		Validation: validation,
	}
	logger.Info("training started",
		"model", cfg.Classifier.ModelName,
		"examples", train.Len(),
		"epochs", opts.Epochs,
		"batch_size", opts.BatchSize,
		"validation", validation != nil,
	)

	history, fitErr := clf.Fit(ctx, train.Texts, train.Labels, opts)
	if fitErr != nil && history.Empty() {
		logger.Error("training failed", "error", fitErr)
		os.Exit(1)
	}

	run := &model.Run{
		ModelName:    cfg.Classifier.ModelName,
		Handle:       m.Handle(),
		NumLabels:    clf.NumLabels(),
		Epochs:       history.Epochs(),
		ClassWeights: clf.ClassWeights(),
		History:      history,
	}
	if err := runStore.SaveRun(run); err != nil {
		logger.Error("failed to save run", "error", err)
		os.Exit(1)
	}
	if fitErr != nil {
		logger.Error("training stopped early with an error, partial run saved", "run_id", run.ID, "epochs", run.Epochs, "error", fitErr)
		os.Exit(1)
	}

	if err := n.NotifyRun(*run); err != nil {
		logger.Warn("run notification failed", "run_id", run.ID, "error", err)
	}

	out := cmd.OutOrStdout()
	if validation != nil {
		preds, err := clf.Predict(ctx, validation.Texts)
		if err != nil {
			logger.Error("validation predict failed", "error", err)
			os.Exit(1)
		}
		report, err := classifier.Evaluate(validation.Labels, preds, clf.NumLabels())
		if err != nil {
			logger.Error("evaluation failed", "error", err)
			os.Exit(1)
		}
		fmt.Fprintln(out, report)
	}
	if trainPlot {
		if err := plot.PlotHistory(out, history); err != nil {
			return err
		}
	}

	logger.Info("training complete", "run_id", run.ID, "handle", run.Handle, "epochs", run.Epochs)
	return nil
}

func loadLabelled(path string) (dataset.Dataset, error) {
	ds, err := dataset.Load(path)
	if err != nil {
		return dataset.Dataset{}, err
	}
	if !ds.Labelled() {
		return dataset.Dataset{}, fmt.Errorf("%s has no label column", path)
	}
	return ds, nil
}

func callbacksFromConfig(c config.ClassifierConfig, logger *slog.Logger) []classifier.Callback {
	es := classifier.NewEarlyStopping(c.EarlyStopping.Monitor, c.EarlyStopping.Patience)
	es.Logger = logger

	rl := classifier.NewReduceLROnPlateau(c.ReduceLR.Monitor, c.ReduceLR.Factor, c.ReduceLR.Patience)
	rl.MinLR = c.ReduceLR.MinLR
	rl.Logger = logger

	return []classifier.Callback{es, rl}
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
