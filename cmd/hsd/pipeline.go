package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/config"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/dataset"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder/tokenizer"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/textproc"
)

// buildPreprocessor assembles the advanced cleaning pipeline from config.
func buildPreprocessor(c *config.Config, log zerolog.Logger) *textproc.AdvancedTextPreprocessor {
	opts := textproc.DefaultOptions()
	opts.RemoveURLs = c.Data.RemoveURLs
	opts.RemoveMentions = c.Data.RemoveMentions
	opts.RemoveHashtags = c.Data.RemoveHashtags
	opts.Lowercase = c.Data.Lowercase
	opts.MinLength = c.Data.MinLength
	return textproc.NewAdvancedTextPreprocessor(opts, nil, log)
}

// buildTokenizer opens the configured vocabulary with the configured
// sequence length.
func buildTokenizer(c *config.Config) (tokenizer.Tokenizer, error) {
	tok, err := tokenizer.New(c.Model.VocabPath, c.Data.MaxLength)
	if err != nil {
		return nil, fmt.Errorf("build tokenizer from %s: %w", c.Model.VocabPath, err)
	}
	return tok, nil
}

// buildClassifier constructs the configured architecture over a fresh
// encoder.
func buildClassifier(c *config.Config) (model.Classifier, error) {
	encoder.ResolveDevice(c.Model.Device, c.Data.BatchSize)
	enc := encoder.NewEncoder(c.Model.EncoderProvider, c.Model.HiddenSize, c.Model.EncoderModelPath)
	mcfg := model.Config{
		Architecture:     c.Model.Architecture,
		NumLabels:        c.Model.NumLabels,
		NumAuxLabels:     c.Model.NumAuxiliaryLabels,
		HiddenSize:       c.Model.HiddenSize,
		DropoutRate:      c.Model.DropoutRate,
		AttentionHeads:   c.Model.AttentionHeads,
		MaxLength:        c.Data.MaxLength,
		EncoderProvider:  c.Model.EncoderProvider,
		EncoderModelPath: c.Model.EncoderModelPath,
	}
	return model.New(mcfg, enc, c.Training.Seed)
}

// buildLoaders runs the table-to-loaders pipeline from config.
func buildLoaders(c *config.Config, dataPath string, log zerolog.Logger) (*dataset.Loaders, error) {
	tbl, err := dataset.LoadTable(dataPath)
	if err != nil {
		return nil, err
	}
	tok, err := buildTokenizer(c)
	if err != nil {
		return nil, err
	}
	opts := dataset.FactoryOptions{
		TextColumn:  c.Data.TextColumn,
		LabelColumn: c.Data.LabelColumn,
		AuxColumn:   c.Data.AuxLabelColumn,
		Ratios: dataset.SplitRatios{
			Train: c.Data.TrainRatio,
			Val:   c.Data.ValRatio,
			Test:  c.Data.TestRatio,
		},
		BatchSize: c.Data.BatchSize,
		Seed:      c.Data.Seed,
	}
	if c.Data.BalanceDataset {
		opts.BalanceMethod = c.Data.BalanceMethod
	}
	return dataset.NewLoaders(tbl, buildPreprocessor(c, log), tok, c.Model.NumLabels, opts, log)
}
