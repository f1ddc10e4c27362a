package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder/tokenizer"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

var predictModelDir string

type prediction struct {
	Text          string    `json:"text"`
	Label         int64     `json:"label"`
	LabelName     string    `json:"label_name,omitempty"`
	Probabilities []float64 `json:"probabilities"`
}

var predictCmd = &cobra.Command{
	Use:   "predict [texts...]",
	Short: "Classify texts with a saved checkpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encoder.ResolveDevice(cfg.Model.Device, cfg.Data.BatchSize)
		clf, err := model.Load(predictModelDir, nil)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		mcfg := clf.Config()
		tok, err := tokenizer.New(model.VocabPath(predictModelDir), mcfg.MaxLength)
		if err != nil {
			return fmt.Errorf("tokenizer from checkpoint: %w", err)
		}

		pre := buildPreprocessor(cfg, log)
		cleaned := pre.PreprocessBatch(args)
		ids, masks, err := tok.Tokenize(cleaned)
		if err != nil {
			return err
		}
		fwd, err := clf.Forward(cmd.Context(), ids, masks, false)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		rows, _ := fwd.Logits.Dims()
		for i := 0; i < rows; i++ {
			probs := softmaxProbs(fwd.Logits.RawRowView(i))
			label := int64(0)
			for k, p := range probs {
				if p > probs[label] {
					label = int64(k)
				}
			}
			out := prediction{Text: args[i], Label: label, Probabilities: probs}
			if int(label) < len(cfg.Eval.ClassNames) {
				out.LabelName = cfg.Eval.ClassNames[label]
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		return nil
	},
}

func softmaxProbs(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func init() {
	predictCmd.Flags().StringVar(&predictModelDir, "model", "", "Checkpoint directory of a trained model")
	if err := predictCmd.MarkFlagRequired("model"); err != nil {
		panic(err)
	}
}
