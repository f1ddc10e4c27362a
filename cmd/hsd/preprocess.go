package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/dataset"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/textproc"
)

var (
	preprocessDataPath string
	preprocessOutPath  string
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Clean a dataset and write the result as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := dataset.LoadTable(preprocessDataPath)
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

		keptTexts := make([]string, 0, len(cleaned))
		keptLabels := make([]int64, 0, len(cleaned))
		for i, s := range cleaned {
			if strings.TrimSpace(s) == "" {
				continue
			}
			keptTexts = append(keptTexts, s)
			keptLabels = append(keptLabels, labels[i])
		}
		if len(keptTexts) == 0 {
			return fmt.Errorf("preprocessing removed every row of %s", preprocessDataPath)
		}
		log.Info().
			Int("rows_in", len(texts)).
			Int("rows_out", len(keptTexts)).
			Msg("dataset cleaned")

		out := dataset.NewTable(keptTexts, keptLabels)
		if err := out.SaveCSV(preprocessOutPath); err != nil {
			return err
		}

		stats := textproc.ComputeStats(texts, keptTexts)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	preprocessCmd.Flags().StringVar(&preprocessDataPath, "data", "", "Path to the dataset to clean (.csv, .json or .jsonl)")
	preprocessCmd.Flags().StringVar(&preprocessOutPath, "out", "cleaned.csv", "Path of the cleaned CSV to write")
	if err := preprocessCmd.MarkFlagRequired("data"); err != nil {
		panic(err)
	}
}
