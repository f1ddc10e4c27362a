package training

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Loss computes a scalar loss and the gradient of the mean batch loss
// w.r.t. the logits.
type Loss interface {
	Compute(logits *mat.Dense, targets []int64) (loss float64, dLogits *mat.Dense, err error)
}

// softmaxRow returns the softmax of one logit row, shifted for stability.
func softmaxRow(logits *mat.Dense, i, cols int) []float64 {
	maxv := math.Inf(-1)
	for j := 0; j < cols; j++ {
		if v := logits.At(i, j); v > maxv {
			maxv = v
		}
	}
	probs := make([]float64, cols)
	var sum float64
	for j := 0; j < cols; j++ {
		probs[j] = math.Exp(logits.At(i, j) - maxv)
		sum += probs[j]
	}
	for j := range probs {
		probs[j] /= sum
	}
	return probs
}

// WeightedCrossEntropy is softmax cross entropy with optional per-class
// weights. A nil weight slice means uniform weighting.
type WeightedCrossEntropy struct {
	Weights []float64
}

func (l *WeightedCrossEntropy) Compute(logits *mat.Dense, targets []int64) (float64, *mat.Dense, error) {
	rows, cols := logits.Dims()
	if rows != len(targets) {
		return 0, nil, fmt.Errorf("logits rows %d vs %d targets", rows, len(targets))
	}
	grad := mat.NewDense(rows, cols, nil)
	var total float64
	for i := 0; i < rows; i++ {
		t := int(targets[i])
		if t < 0 || t >= cols {
			return 0, nil, fmt.Errorf("target %d out of range [0, %d)", t, cols)
		}
		probs := softmaxRow(logits, i, cols)
		alpha := 1.0
		if l.Weights != nil {
			if t >= len(l.Weights) {
				return 0, nil, fmt.Errorf("no class weight for target %d", t)
			}
			alpha = l.Weights[t]
		}
		pt := math.Max(probs[t], 1e-12)
		total += -alpha * math.Log(pt)
		for j := 0; j < cols; j++ {
			delta := 0.0
			if j == t {
				delta = 1.0
			}
			grad.Set(i, j, alpha*(probs[j]-delta)/float64(rows))
		}
	}
	return total / float64(rows), grad, nil
}

// FocalLoss down-weights well-classified examples:
// FL = -alpha_t (1-p_t)^gamma log(p_t). With gamma of zero it reduces to
// weighted cross entropy.
type FocalLoss struct {
	Alpha []float64 // per-class, nil for uniform 1.0
	Gamma float64
}

func (l *FocalLoss) Compute(logits *mat.Dense, targets []int64) (float64, *mat.Dense, error) {
	rows, cols := logits.Dims()
	if rows != len(targets) {
		return 0, nil, fmt.Errorf("logits rows %d vs %d targets", rows, len(targets))
	}
	grad := mat.NewDense(rows, cols, nil)
	var total float64
	for i := 0; i < rows; i++ {
		t := int(targets[i])
		if t < 0 || t >= cols {
			return 0, nil, fmt.Errorf("target %d out of range [0, %d)", t, cols)
		}
		alpha := 1.0
		if l.Alpha != nil {
			if t >= len(l.Alpha) {
				return 0, nil, fmt.Errorf("no alpha for target %d", t)
			}
			alpha = l.Alpha[t]
		}
		probs := softmaxRow(logits, i, cols)
		pt := math.Max(probs[t], 1e-12)
		q := 1.0 - pt
		total += -alpha * math.Pow(q, l.Gamma) * math.Log(pt)

		// dFL/dp_t, then chain through the softmax Jacobian:
		// dp_j/dz_k = p_j (delta_jk - p_k), only the p_t row matters.
		var dpt float64
		if l.Gamma == 0 {
			dpt = -alpha / pt
		} else {
			dpt = alpha*l.Gamma*math.Pow(q, l.Gamma-1)*math.Log(pt) - alpha*math.Pow(q, l.Gamma)/pt
		}
		for k := 0; k < cols; k++ {
			delta := 0.0
			if k == t {
				delta = 1.0
			}
			dz := dpt * pt * (delta - probs[k])
			grad.Set(i, k, dz/float64(rows))
		}
	}
	return total / float64(rows), grad, nil
}
