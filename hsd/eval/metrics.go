package eval

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// CalculateMetrics computes accuracy, weighted precision/recall/F1 and the
// per-class variants, keyed "precision_class_0" and so on. When binary
// probabilities are supplied the ROC AUC is added under "auc"; if only one
// class is present in the truth the AUC is reported as 0.0, since the
// curve is undefined there.
func CalculateMetrics(yTrue, yPred []int64, probs [][]float64, numClasses int, log zerolog.Logger) (map[string]float64, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d true labels vs %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("no predictions to score")
	}

	metrics := make(map[string]float64)

	var correct int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	metrics["accuracy"] = float64(correct) / float64(len(yTrue))

	// Per-class counts for precision/recall.
	tp := make([]int, numClasses)
	fp := make([]int, numClasses)
	fn := make([]int, numClasses)
	support := make([]int, numClasses)
	for i := range yTrue {
		tc, pc := int(yTrue[i]), int(yPred[i])
		if tc < 0 || tc >= numClasses || pc < 0 || pc >= numClasses {
			return nil, fmt.Errorf("label out of range: true=%d pred=%d classes=%d", tc, pc, numClasses)
		}
		support[tc]++
		if tc == pc {
			tp[tc]++
		} else {
			fp[pc]++
			fn[tc]++
		}
	}

	var wPrec, wRec, wF1 float64
	total := float64(len(yTrue))
	for c := 0; c < numClasses; c++ {
		var prec, rec, f1 float64
		if tp[c]+fp[c] > 0 {
			prec = float64(tp[c]) / float64(tp[c]+fp[c])
		}
		if tp[c]+fn[c] > 0 {
			rec = float64(tp[c]) / float64(tp[c]+fn[c])
		}
		if prec+rec > 0 {
			f1 = 2 * prec * rec / (prec + rec)
		}
		metrics[fmt.Sprintf("precision_class_%d", c)] = prec
		metrics[fmt.Sprintf("recall_class_%d", c)] = rec
		metrics[fmt.Sprintf("f1_class_%d", c)] = f1

		w := float64(support[c]) / total
		wPrec += w * prec
		wRec += w * rec
		wF1 += w * f1
	}
	metrics["precision"] = wPrec
	metrics["recall"] = wRec
	metrics["f1"] = wF1

	if probs != nil && numClasses == 2 {
		auc, ok := binaryAUC(yTrue, probs)
		if !ok {
			log.Warn().Msg("auc undefined with a single class present, reporting 0.0")
		}
		metrics["auc"] = auc
	}
	return metrics, nil
}

// binaryAUC computes the ROC AUC from positive-class probabilities. The
// second return is false when the truth contains only one class.
func binaryAUC(yTrue []int64, probs [][]float64) (float64, bool) {
	type scored struct {
		score float64
		pos   bool
	}
	rows := make([]scored, 0, len(yTrue))
	var havePos, haveNeg bool
	for i, t := range yTrue {
		if len(probs[i]) < 2 {
			continue
		}
		pos := t == 1
		havePos = havePos || pos
		haveNeg = haveNeg || !pos
		rows = append(rows, scored{score: probs[i][1], pos: pos})
	}
	if !havePos || !haveNeg {
		return 0.0, false
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].score < rows[j].score })

	scores := make([]float64, len(rows))
	classes := make([]bool, len(rows))
	for i, r := range rows {
		scores[i] = r.score
		classes[i] = r.pos
	}
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}
