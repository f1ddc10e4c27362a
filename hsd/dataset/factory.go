package dataset

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder/tokenizer"
)

// Preprocessor cleans a single raw text. An empty return value marks the
// row for removal.
type Preprocessor interface {
	Preprocess(text string) string
}

// FactoryOptions configure the table-to-loaders pipeline.
type FactoryOptions struct {
	TextColumn    string
	LabelColumn   string
	AuxColumn     string
	Ratios        SplitRatios
	BatchSize     int
	Seed          int64
	BalanceMethod string // "", "undersample" or "oversample"; applied to train only
}

// Loaders bundle the three per-split batch loaders with the artifacts the
// trainer needs alongside them.
type Loaders struct {
	Train        *BatchLoader
	Val          *BatchLoader
	Test         *BatchLoader
	ClassWeights []float64
	LabelMapping map[string]int64
}

// preparedRows is the cleaned, aligned table content every loader
// construction starts from.
type preparedRows struct {
	texts      []string
	labels     []int64
	aux        []int64
	mapping    map[string]int64
	stratified bool
}

// prepareRows extracts and cleans the table columns: preprocess texts in
// parallel and drop rows emptied by cleaning. A missing label column
// degrades to all-zero labels and unstratified splitting.
func prepareRows(t *Table, pre Preprocessor, opts FactoryOptions, log zerolog.Logger) (*preparedRows, error) {
	texts, err := t.Texts(opts.TextColumn)
	if err != nil {
		return nil, err
	}

	var (
		labels  []int64
		mapping map[string]int64
	)
	stratified := t.HasColumn(opts.LabelColumn)
	if stratified {
		labels, mapping, err = t.Labels(opts.LabelColumn)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn().Str("column", opts.LabelColumn).
			Msg("label column absent, splitting without stratification")
		labels = make([]int64, len(texts))
	}
	if len(texts) != len(labels) {
		return nil, fmt.Errorf("%w: %d texts vs %d labels", ErrLengthMismatch, len(texts), len(labels))
	}

	var aux []int64
	if opts.AuxColumn != "" && t.HasColumn(opts.AuxColumn) {
		aux, _, err = t.Labels(opts.AuxColumn)
		if err != nil {
			return nil, err
		}
	}

	// Row order is preserved through the parallel map so labels stay
	// aligned with their texts.
	cleaned := texts
	if pre != nil {
		cleaned = iter.Map(texts, func(s *string) string {
			return pre.Preprocess(*s)
		})
	}
	keptTexts := make([]string, 0, len(cleaned))
	keptLabels := make([]int64, 0, len(labels))
	var keptAux []int64
	for i, c := range cleaned {
		if strings.TrimSpace(c) == "" {
			continue
		}
		keptTexts = append(keptTexts, c)
		keptLabels = append(keptLabels, labels[i])
		if aux != nil {
			keptAux = append(keptAux, aux[i])
		}
	}
	if dropped := len(cleaned) - len(keptTexts); dropped > 0 {
		log.Info().Int("dropped", dropped).Int("kept", len(keptTexts)).
			Msg("removed rows emptied by preprocessing")
	}
	if len(keptTexts) == 0 {
		return nil, fmt.Errorf("%w: preprocessing removed every row", ErrEmptySplit)
	}
	return &preparedRows{
		texts:      keptTexts,
		labels:     keptLabels,
		aux:        keptAux,
		mapping:    mapping,
		stratified: stratified,
	}, nil
}

func (r *preparedRows) dataset(tok tokenizer.Tokenizer) (*Dataset, error) {
	ds, err := NewDataset(r.texts, r.labels, tok)
	if err != nil {
		return nil, err
	}
	if r.aux != nil {
		if err := ds.WithAuxLabels(r.aux); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// NewLoaders runs the full preparation pipeline: clean the table, split
// stratified by label, optionally rebalance the training partition, and
// wrap each partition in a loader. Only the training loader shuffles.
func NewLoaders(t *Table, pre Preprocessor, tok tokenizer.Tokenizer, numClasses int, opts FactoryOptions, log zerolog.Logger) (*Loaders, error) {
	rows, err := prepareRows(t, pre, opts, log)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var split *Split
	if rows.stratified {
		split, err = StratifiedSplit(rows.labels, opts.Ratios, rng)
	} else {
		split, err = RandomSplit(len(rows.labels), opts.Ratios, rng)
	}
	if err != nil {
		return nil, err
	}

	full, err := rows.dataset(tok)
	if err != nil {
		return nil, err
	}

	trainDS := full.subset(split.Train)
	valDS := full.subset(split.Val)
	testDS := full.subset(split.Test)

	if opts.BalanceMethod != "" {
		balanced, err := trainDS.Balanced(opts.BalanceMethod, rng)
		if err != nil {
			return nil, err
		}
		log.Info().Str("method", opts.BalanceMethod).
			Int("before", trainDS.Len()).Int("after", balanced.Len()).
			Msg("rebalanced training partition")
		trainDS = balanced
	}

	weights := trainDS.ClassWeights(numClasses)

	trainLoader, err := NewBatchLoader(trainDS, opts.BatchSize, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return nil, err
	}
	valLoader, err := NewBatchLoader(valDS, opts.BatchSize, nil)
	if err != nil {
		return nil, err
	}
	testLoader, err := NewBatchLoader(testDS, opts.BatchSize, nil)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("train", trainDS.Len()).Int("val", valDS.Len()).Int("test", testDS.Len()).
		Floats64("class_weights", weights).
		Msg("data loaders ready")

	return &Loaders{
		Train:        trainLoader,
		Val:          valLoader,
		Test:         testLoader,
		ClassWeights: weights,
		LabelMapping: rows.mapping,
	}, nil
}

// FoldLoaders pairs one cross-validation fold's loaders. The validation
// loader is sequential so predictions align with fold membership.
type FoldLoaders struct {
	Train *BatchLoader
	Val   *BatchLoader
}

// NewKFoldLoaders cleans the table once and wraps each stratified fold in
// a loader pair. Every kept row is validation data in exactly one fold.
func NewKFoldLoaders(t *Table, pre Preprocessor, tok tokenizer.Tokenizer, k int, opts FactoryOptions, log zerolog.Logger) ([]FoldLoaders, error) {
	rows, err := prepareRows(t, pre, opts, log)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	folds, err := KFold(rows.labels, k, rng)
	if err != nil {
		return nil, err
	}

	full, err := rows.dataset(tok)
	if err != nil {
		return nil, err
	}

	out := make([]FoldLoaders, 0, len(folds))
	for i, fold := range folds {
		trainDS := full.subset(fold.Train)
		if opts.BalanceMethod != "" {
			trainDS, err = trainDS.Balanced(opts.BalanceMethod, rng)
			if err != nil {
				return nil, err
			}
		}
		trainLoader, err := NewBatchLoader(trainDS, opts.BatchSize, rand.New(rand.NewSource(opts.Seed+int64(i))))
		if err != nil {
			return nil, err
		}
		valLoader, err := NewBatchLoader(full.subset(fold.Val), opts.BatchSize, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, FoldLoaders{Train: trainLoader, Val: valLoader})
	}
	log.Info().Int("folds", len(out)).Int("rows", len(rows.texts)).Msg("cross-validation loaders ready")
	return out, nil
}
