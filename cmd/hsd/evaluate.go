package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/dataset"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder/tokenizer"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/eval"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

var (
	evalModelDir string
	evalDataPath string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a saved checkpoint on a labeled dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		encoder.ResolveDevice(cfg.Model.Device, cfg.Data.BatchSize)
		clf, err := model.Load(evalModelDir, nil)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		mcfg := clf.Config()
		tok, err := tokenizer.New(model.VocabPath(evalModelDir), mcfg.MaxLength)
		if err != nil {
			return fmt.Errorf("tokenizer from checkpoint: %w", err)
		}

		tbl, err := dataset.LoadTable(evalDataPath)
		if err != nil {
			return err
		}
		texts, err := tbl.Texts(cfg.Data.TextColumn)
		if err != nil {
			return err
		}
		labels, _, err := tbl.Labels(cfg.Data.LabelColumn)
		if err != nil {
			return err
		}
		pre := buildPreprocessor(cfg, log)
		cleaned := pre.PreprocessBatch(texts)

		ds, err := dataset.NewDataset(cleaned, labels, tok)
		if err != nil {
			return err
		}
		// Sequential loader so predictions line up with the input rows.
		loader, err := dataset.NewBatchLoader(ds, cfg.Data.BatchSize, nil)
		if err != nil {
			return err
		}

		evaluator := eval.NewEvaluator(clf, cfg.Eval.ClassNames, log)
		result, err := evaluator.Evaluate(ctx, loader)
		if err != nil {
			return err
		}
		fmt.Println(evaluator.ClassificationReport(result))

		if cfg.Eval.SaveArtifacts {
			return saveArtifacts(result, cfg.Paths.ResultsDir, mcfg.Architecture+"-eval")
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalModelDir, "model", "", "Checkpoint directory of a trained model")
	evaluateCmd.Flags().StringVar(&evalDataPath, "data", "", "Path to the labeled dataset (.csv, .json or .jsonl)")
	for _, f := range []string{"model", "data"} {
		if err := evaluateCmd.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}
}
