package eval

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/dataset"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

// Prediction is one scored example.
type Prediction struct {
	Text  string    `json:"text"`
	True  int64     `json:"true_label"`
	Pred  int64     `json:"predicted_label"`
	Probs []float64 `json:"probabilities"`
}

// Result bundles everything a single evaluation produces.
type Result struct {
	Metrics     map[string]float64 `json:"metrics"`
	Confusion   [][]int            `json:"confusion_matrix"`
	Predictions []Prediction       `json:"-"`
	ClassNames  []string           `json:"class_names"`
}

// Evaluator scores a trained classifier over a loader.
type Evaluator struct {
	clf        model.Classifier
	classNames []string
	log        zerolog.Logger
}

func NewEvaluator(clf model.Classifier, classNames []string, log zerolog.Logger) *Evaluator {
	n := clf.Config().NumLabels
	if len(classNames) != n {
		classNames = make([]string, n)
		for i := range classNames {
			classNames[i] = fmt.Sprintf("class_%d", i)
		}
	}
	return &Evaluator{clf: clf, classNames: classNames, log: log}
}

// Evaluate runs the model over every batch and computes metrics, the
// confusion matrix and per-row predictions. The loader must iterate
// sequentially so predictions stay aligned with dataset rows.
func (e *Evaluator) Evaluate(ctx context.Context, loader *dataset.BatchLoader) (*Result, error) {
	numClasses := e.clf.Config().NumLabels

	var yTrue, yPred []int64
	var probs [][]float64
	var preds []Prediction

	loader.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := loader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		fwd, err := e.clf.Forward(ctx, batch.InputIDs, batch.AttentionMasks, false)
		if err != nil {
			return nil, err
		}
		rows, cols := fwd.Logits.Dims()
		for i := 0; i < rows; i++ {
			p := softmax(fwd.Logits.RawRowView(i), cols)
			best := argmax(p)
			yTrue = append(yTrue, batch.Labels[i])
			yPred = append(yPred, int64(best))
			probs = append(probs, p)
			preds = append(preds, Prediction{
				Text:  batch.Texts[i],
				True:  batch.Labels[i],
				Pred:  int64(best),
				Probs: p,
			})
		}
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("evaluation loader produced no rows")
	}

	metrics, err := CalculateMetrics(yTrue, yPred, probs, numClasses, e.log)
	if err != nil {
		return nil, err
	}

	confusion := make([][]int, numClasses)
	for i := range confusion {
		confusion[i] = make([]int, numClasses)
	}
	for i := range yTrue {
		confusion[yTrue[i]][yPred[i]]++
	}

	e.log.Info().
		Float64("accuracy", metrics["accuracy"]).
		Float64("f1", metrics["f1"]).
		Int("rows", len(yTrue)).
		Msg("evaluation complete")

	return &Result{
		Metrics:     metrics,
		Confusion:   confusion,
		Predictions: preds,
		ClassNames:  e.classNames,
	}, nil
}

// ErrorAnalysis splits misclassifications by direction. Class 0 is the
// negative class: a false positive has true label 0 and a nonzero
// prediction, a false negative the reverse.
type ErrorAnalysis struct {
	FalsePositives []Prediction `json:"false_positives"`
	FalseNegatives []Prediction `json:"false_negatives"`
}

// AnalyzeErrors returns up to limit false positives and up to limit false
// negatives, each ordered most confident mistake first.
func (e *Evaluator) AnalyzeErrors(res *Result, limit int) ErrorAnalysis {
	var out ErrorAnalysis
	for _, p := range res.Predictions {
		switch {
		case p.True == 0 && p.Pred != 0:
			out.FalsePositives = append(out.FalsePositives, p)
		case p.True != 0 && p.Pred == 0:
			out.FalseNegatives = append(out.FalseNegatives, p)
		}
	}
	byConfidence := func(s []Prediction) {
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Probs[s[i].Pred] > s[j].Probs[s[j].Pred]
		})
	}
	byConfidence(out.FalsePositives)
	byConfidence(out.FalseNegatives)
	if limit > 0 {
		if len(out.FalsePositives) > limit {
			out.FalsePositives = out.FalsePositives[:limit]
		}
		if len(out.FalseNegatives) > limit {
			out.FalseNegatives = out.FalseNegatives[:limit]
		}
	}
	return out
}

// CompareModels evaluates each named model over the same loader and
// returns one result per model. Evaluations share no state; the loader is
// reset before each pass.
func CompareModels(ctx context.Context, models map[string]model.Classifier, loader *dataset.BatchLoader, classNames []string, log zerolog.Logger) (map[string]*Result, error) {
	results := make(map[string]*Result, len(models))
	for name, clf := range models {
		res, err := NewEvaluator(clf, classNames, log).Evaluate(ctx, loader)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", name, err)
		}
		results[name] = res
	}
	return results, nil
}

// RankResults orders named results by weighted F1, descending.
func RankResults(results map[string]*Result) []string {
	names := make([]string, 0, len(results))
	for n := range results {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		fi := results[names[i]].Metrics["f1"]
		fj := results[names[j]].Metrics["f1"]
		if fi != fj {
			return fi > fj
		}
		return names[i] < names[j]
	})
	return names
}

// ClassificationReport renders a per-class text table in the familiar
// precision/recall/f1/support layout.
func (e *Evaluator) ClassificationReport(res *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-16s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	for c, name := range res.ClassNames {
		var support int
		for _, row := range res.Confusion[c] {
			support += row
		}
		fmt.Fprintf(&sb, "%-16s %10.4f %10.4f %10.4f %10d\n",
			name,
			res.Metrics[fmt.Sprintf("precision_class_%d", c)],
			res.Metrics[fmt.Sprintf("recall_class_%d", c)],
			res.Metrics[fmt.Sprintf("f1_class_%d", c)],
			support)
	}
	fmt.Fprintf(&sb, "\n%-16s %10.4f\n", "accuracy", res.Metrics["accuracy"])
	fmt.Fprintf(&sb, "%-16s %10.4f %10.4f %10.4f\n", "weighted avg",
		res.Metrics["precision"], res.Metrics["recall"], res.Metrics["f1"])
	return sb.String()
}

func softmax(logits []float64, cols int) []float64 {
	maxv := math.Inf(-1)
	for j := 0; j < cols; j++ {
		if logits[j] > maxv {
			maxv = logits[j]
		}
	}
	out := make([]float64, cols)
	var sum float64
	for j := 0; j < cols; j++ {
		out[j] = math.Exp(logits[j] - maxv)
		sum += out[j]
	}
	for j := range out {
		out[j] /= sum
	}
	return out
}

func argmax(v []float64) int {
	best, bestV := 0, math.Inf(-1)
	for i, x := range v {
		if x > bestV {
			best, bestV = i, x
		}
	}
	return best
}
