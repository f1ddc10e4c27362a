package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// confusionGrid adapts a confusion matrix to the heat map's grid
// interface. Rows are true classes, columns predicted.
type confusionGrid struct {
	m [][]int
}

func (g confusionGrid) Dims() (c, r int)   { return len(g.m), len(g.m) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }
func (g confusionGrid) Z(c, r int) float64 { return float64(g.m[r][c]) }

// SaveConfusionHeatmap renders the confusion matrix as a PNG heat map.
func SaveConfusionHeatmap(res *Result, path string) error {
	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"

	hm := plotter.NewHeatMap(confusionGrid{m: res.Confusion}, palette.Heat(12, 1))
	p.Add(hm)

	ticks := make([]plot.Tick, len(res.ClassNames))
	for i, name := range res.ClassNames {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)

	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save confusion heatmap: %w", err)
	}
	return nil
}

// SaveROCCurve renders the ROC curve for binary results. It fails when
// the task is not binary or the truth holds a single class.
func SaveROCCurve(res *Result, path string) error {
	if len(res.ClassNames) != 2 {
		return fmt.Errorf("roc curve requires binary classification, have %d classes", len(res.ClassNames))
	}
	type scored struct {
		score float64
		pos   bool
	}
	rows := make([]scored, 0, len(res.Predictions))
	var havePos, haveNeg bool
	for _, pr := range res.Predictions {
		if len(pr.Probs) < 2 {
			continue
		}
		pos := pr.True == 1
		havePos = havePos || pos
		haveNeg = haveNeg || !pos
		rows = append(rows, scored{score: pr.Probs[1], pos: pos})
	}
	if !havePos || !haveNeg {
		return fmt.Errorf("roc curve undefined with a single class present")
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].score < rows[j].score })
	scores := make([]float64, len(rows))
	classes := make([]bool, len(rows))
	for i, r := range rows {
		scores[i] = r.score
		classes[i] = r.pos
	}
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC Curve (AUC = %.4f)", res.Metrics["auc"])
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	curve := make(plotter.XYs, len(fpr))
	for i := range fpr {
		curve[i].X = fpr[i]
		curve[i].Y = tpr[i]
	}
	line, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("roc line: %w", err)
	}
	p.Add(line)

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return fmt.Errorf("roc diagonal: %w", err)
	}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diag)

	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save roc curve: %w", err)
	}
	return nil
}

// SaveMetricsJSON writes the metrics and confusion matrix to a JSON file.
func SaveMetricsJSON(res *Result, path string) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
