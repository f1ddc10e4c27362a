package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/eval"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/store"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/training"
)

var (
	trainDataPath string
	trainArch     string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a classifier on a labeled dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trainArch != "" {
			cfg.Model.Architecture = trainArch
		}
		ctx := cmd.Context()

		loaders, err := buildLoaders(cfg, trainDataPath, log)
		if err != nil {
			return err
		}
		clf, err := buildClassifier(cfg)
		if err != nil {
			return err
		}

		var loss training.Loss
		if cfg.Training.UseFocalLoss {
			alpha := make([]float64, cfg.Model.NumLabels)
			for i, w := range loaders.ClassWeights {
				alpha[i] = w * cfg.Training.FocalAlpha
			}
			loss = &training.FocalLoss{Alpha: alpha, Gamma: cfg.Training.FocalGamma}
		} else {
			loss = &training.WeightedCrossEntropy{Weights: loaders.ClassWeights}
		}

		checkpointDir := ""
		if cfg.Training.CheckpointOnBest {
			checkpointDir = filepath.Join(cfg.Paths.ModelsDir, cfg.Model.Architecture)
		}
		trainer := training.NewTrainer(clf, loss, training.Config{
			MaxEpochs:     cfg.Training.MaxEpochs,
			LearningRate:  cfg.Training.LearningRate,
			WeightDecay:   cfg.Training.WeightDecay,
			WarmupSteps:   cfg.Training.WarmupSteps,
			MaxGradNorm:   cfg.Training.MaxGradNorm,
			Patience:      cfg.Training.Patience,
			AuxLossWeight: cfg.Training.AuxLossWeight,
			CheckpointDir: checkpointDir,
			VocabPath:     cfg.Model.VocabPath,
			RunConfig:     cfg,
		}, log)

		var runStore *store.RunStore
		if cfg.Store.Enabled {
			runStore, err = store.Open(cfg.Store.DSN, log)
			if err != nil {
				return err
			}
			defer runStore.Close()
		}

		history, err := trainer.Train(ctx, loaders.Train, loaders.Val)
		if err != nil {
			return fmt.Errorf("training failed: %w", err)
		}

		evaluator := eval.NewEvaluator(clf, cfg.Eval.ClassNames, log)
		result, err := evaluator.Evaluate(ctx, loaders.Test)
		if err != nil {
			return fmt.Errorf("test evaluation failed: %w", err)
		}
		fmt.Println(evaluator.ClassificationReport(result))

		if runStore != nil {
			cfgJSON, _ := json.Marshal(cfg)
			runID, err := runStore.CreateRun(cfg.Model.Architecture, string(cfgJSON))
			if err != nil {
				return err
			}
			if err := runStore.RecordHistory(runID, history); err != nil {
				return err
			}
			if err := runStore.RecordMetrics(runID, "test", result.Metrics); err != nil {
				return err
			}
			if err := runStore.RecordPredictions(runID, result.Predictions); err != nil {
				return err
			}
			status := "completed"
			if history.StoppedEarly {
				status = "stopped_early"
			}
			if err := runStore.FinishRun(runID, status); err != nil {
				return err
			}
			log.Info().Str("run_id", runID.String()).Msg("run recorded")
		}

		if cfg.Eval.SaveArtifacts {
			if err := saveArtifacts(result, cfg.Paths.ResultsDir, cfg.Model.Architecture); err != nil {
				return err
			}
		}
		return nil
	},
}

func saveArtifacts(result *eval.Result, resultsDir, name string) error {
	dir := filepath.Join(resultsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	if err := eval.SaveMetricsJSON(result, filepath.Join(dir, "metrics.json")); err != nil {
		return err
	}
	if err := eval.SaveConfusionHeatmap(result, filepath.Join(dir, "confusion_matrix.png")); err != nil {
		return err
	}
	if len(result.ClassNames) == 2 {
		if err := eval.SaveROCCurve(result, filepath.Join(dir, "roc_curve.png")); err != nil {
			// Single-class test sets make the curve undefined; keep going.
			log.Warn().Err(err).Msg("skipping roc curve")
		}
	}
	return nil
}

func init() {
	trainCmd.Flags().StringVar(&trainDataPath, "data", "", "Path to the labeled dataset (.csv, .json or .jsonl)")
	trainCmd.Flags().StringVar(&trainArch, "architecture", "", "Override configured architecture: base, multitask, hierarchical, attention")
	if err := trainCmd.MarkFlagRequired("data"); err != nil {
		panic(err)
	}
}
