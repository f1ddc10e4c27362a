package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/dataset"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder/tokenizer"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

const evalHidden = 16

func evalLoader(t *testing.T, n int) *dataset.BatchLoader {
	t.Helper()
	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhate\nyou\nlove\npeace\n"
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(vocab), 0o644))
	tok, err := tokenizer.LoadWordPieceFromVocab(path, 8)
	require.NoError(t, err)

	texts := make([]string, n)
	labels := make([]int64, n)
	for i := range texts {
		if i%2 == 0 {
			texts[i] = "hate you"
			labels[i] = 1
		} else {
			texts[i] = "love peace"
			labels[i] = 0
		}
	}
	ds, err := dataset.NewDataset(texts, labels, tok)
	require.NoError(t, err)
	loader, err := dataset.NewBatchLoader(ds, 4, nil)
	require.NoError(t, err)
	return loader
}

func evalClassifier(t *testing.T) model.Classifier {
	t.Helper()
	cfg := model.Config{
		Architecture:    model.ArchBase,
		NumLabels:       2,
		HiddenSize:      evalHidden,
		DropoutRate:     0,
		MaxLength:       8,
		EncoderProvider: "hash",
	}
	clf, err := model.New(cfg, encoder.NewHashEncoder(evalHidden), 42)
	require.NoError(t, err)
	return clf
}

func TestEvaluateShapesAndAlignment(t *testing.T) {
	clf := evalClassifier(t)
	ev := NewEvaluator(clf, []string{"Non-Hate", "Hate"}, zerolog.Nop())

	res, err := ev.Evaluate(context.Background(), evalLoader(t, 10))
	require.NoError(t, err)

	assert.Len(t, res.Predictions, 10)
	require.Len(t, res.Confusion, 2)

	// Confusion entries sum to the row count.
	var total int
	for _, row := range res.Confusion {
		for _, v := range row {
			total += v
		}
	}
	assert.Equal(t, 10, total)

	// Sequential loader keeps predictions aligned with input rows.
	assert.Equal(t, "hate you", res.Predictions[0].Text)
	assert.EqualValues(t, 1, res.Predictions[0].True)
	assert.InDelta(t, 1.0, res.Predictions[0].Probs[0]+res.Predictions[0].Probs[1], 1e-12)

	_, ok := res.Metrics["auc"]
	assert.True(t, ok, "binary eval reports auc")
}

func TestNewEvaluatorDefaultsClassNames(t *testing.T) {
	ev := NewEvaluator(evalClassifier(t), []string{"only-one"}, zerolog.Nop())
	assert.Equal(t, []string{"class_0", "class_1"}, ev.classNames)
}

func TestAnalyzeErrors(t *testing.T) {
	res := &Result{
		Predictions: []Prediction{
			{Text: "right", True: 1, Pred: 1, Probs: []float64{0.1, 0.9}},
			{Text: "fp low", True: 0, Pred: 1, Probs: []float64{0.45, 0.55}},
			{Text: "fp high", True: 0, Pred: 1, Probs: []float64{0.05, 0.95}},
			{Text: "fn", True: 1, Pred: 0, Probs: []float64{0.95, 0.05}},
		},
	}
	ev := NewEvaluator(evalClassifier(t), nil, zerolog.Nop())

	errs := ev.AnalyzeErrors(res, 0)
	require.Len(t, errs.FalsePositives, 2)
	require.Len(t, errs.FalseNegatives, 1)
	assert.Equal(t, "fp high", errs.FalsePositives[0].Text, "most confident mistake first")
	assert.Equal(t, "fn", errs.FalseNegatives[0].Text)

	limited := ev.AnalyzeErrors(res, 1)
	assert.Len(t, limited.FalsePositives, 1)
	assert.Len(t, limited.FalseNegatives, 1)
}

func TestCompareModels(t *testing.T) {
	loader := evalLoader(t, 8)
	models := map[string]model.Classifier{
		"first":  evalClassifier(t),
		"second": evalClassifier(t),
	}

	results, err := CompareModels(context.Background(), models, loader, nil, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Identical models scored over the same rows must agree exactly.
	assert.Equal(t, results["first"].Metrics, results["second"].Metrics)
}

func TestRankResults(t *testing.T) {
	results := map[string]*Result{
		"base":      {Metrics: map[string]float64{"f1": 0.75}},
		"attention": {Metrics: map[string]float64{"f1": 0.90}},
		"multitask": {Metrics: map[string]float64{"f1": 0.80}},
	}
	assert.Equal(t, []string{"attention", "multitask", "base"}, RankResults(results))
}

func TestClassificationReport(t *testing.T) {
	clf := evalClassifier(t)
	ev := NewEvaluator(clf, []string{"Non-Hate", "Hate"}, zerolog.Nop())
	res, err := ev.Evaluate(context.Background(), evalLoader(t, 8))
	require.NoError(t, err)

	report := ev.ClassificationReport(res)
	assert.Contains(t, report, "Non-Hate")
	assert.Contains(t, report, "Hate")
	assert.Contains(t, report, "precision")
	assert.Contains(t, report, "weighted avg")
}

func TestSavePlotsAndMetrics(t *testing.T) {
	clf := evalClassifier(t)
	ev := NewEvaluator(clf, []string{"Non-Hate", "Hate"}, zerolog.Nop())
	res, err := ev.Evaluate(context.Background(), evalLoader(t, 12))
	require.NoError(t, err)

	dir := t.TempDir()
	heat := filepath.Join(dir, "confusion.png")
	roc := filepath.Join(dir, "roc.png")
	metrics := filepath.Join(dir, "metrics.json")

	require.NoError(t, SaveConfusionHeatmap(res, heat))
	require.NoError(t, SaveROCCurve(res, roc))
	require.NoError(t, SaveMetricsJSON(res, metrics))

	for _, p := range []string{heat, roc, metrics} {
		fi, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, fi.Size(), int64(0))
	}
}

func TestSaveROCCurveRejectsMulticlass(t *testing.T) {
	res := &Result{ClassNames: []string{"a", "b", "c"}}
	assert.Error(t, SaveROCCurve(res, filepath.Join(t.TempDir(), "roc.png")))
}
