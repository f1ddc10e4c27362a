package training

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"
)

func TestWeightedCrossEntropyKnownValue(t *testing.T) {
	// Uniform logits over two classes: loss is ln 2, grad is (p - onehot)/batch.
	logits := mat.NewDense(1, 2, []float64{0, 0})
	ce := &WeightedCrossEntropy{}
	loss, grad, err := ce.Compute(logits, []int64{0})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), loss, 1e-12)
	assert.InDelta(t, -0.5, grad.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, grad.At(0, 1), 1e-12)
}

func TestWeightedCrossEntropyClassWeights(t *testing.T) {
	logits := mat.NewDense(1, 2, []float64{0, 0})
	unweighted := &WeightedCrossEntropy{}
	weighted := &WeightedCrossEntropy{Weights: []float64{3.0, 1.0}}

	lu, _, err := unweighted.Compute(logits, []int64{0})
	require.NoError(t, err)
	lw, gw, err := weighted.Compute(logits, []int64{0})
	require.NoError(t, err)
	assert.InDelta(t, 3*lu, lw, 1e-12)
	assert.InDelta(t, -1.5, gw.At(0, 0), 1e-12)
}

func TestFocalGammaZeroEqualsCrossEntropy(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	logits := mat.NewDense(4, 3, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			logits.Set(i, j, rng.NormFloat64()*2)
		}
	}
	targets := []int64{0, 2, 1, 2}

	ce := &WeightedCrossEntropy{}
	fl := &FocalLoss{Gamma: 0}

	lc, gc, err := ce.Compute(logits, targets)
	require.NoError(t, err)
	lf, gf, err := fl.Compute(logits, targets)
	require.NoError(t, err)

	assert.InDelta(t, lc, lf, 1e-10)
	assert.True(t, mat.EqualApprox(gc, gf, 1e-10))
}

func TestFocalDownWeightsEasyExamples(t *testing.T) {
	// A confidently correct example contributes much less under gamma 2.
	logits := mat.NewDense(1, 2, []float64{6, -6})
	ce := &WeightedCrossEntropy{}
	fl := &FocalLoss{Gamma: 2}

	lc, _, err := ce.Compute(logits, []int64{0})
	require.NoError(t, err)
	lf, _, err := fl.Compute(logits, []int64{0})
	require.NoError(t, err)
	assert.Less(t, lf, lc*1e-3)
}

func TestFocalAlpha(t *testing.T) {
	logits := mat.NewDense(1, 2, []float64{0, 0})
	plain := &FocalLoss{Gamma: 2}
	scaled := &FocalLoss{Gamma: 2, Alpha: []float64{2.0, 1.0}}

	lp, _, err := plain.Compute(logits, []int64{0})
	require.NoError(t, err)
	ls, _, err := scaled.Compute(logits, []int64{0})
	require.NoError(t, err)
	assert.InDelta(t, 2*lp, ls, 1e-12)
}

func lossGradCheck(t *testing.T, l Loss, rows, cols int, targets []int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	logits := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			logits.Set(i, j, rng.NormFloat64())
		}
	}
	_, grad, err := l.Compute(logits, targets)
	require.NoError(t, err)

	const eps = 1e-6
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			orig := logits.At(i, j)
			logits.Set(i, j, orig+eps)
			plus, _, err := l.Compute(logits, targets)
			require.NoError(t, err)
			logits.Set(i, j, orig-eps)
			minus, _, err := l.Compute(logits, targets)
			require.NoError(t, err)
			logits.Set(i, j, orig)

			numeric := (plus - minus) / (2 * eps)
			assert.InDelta(t, numeric, grad.At(i, j), 1e-5,
				"logit [%d,%d]", i, j)
		}
	}
}

func TestLossGradientsMatchFiniteDifferences(t *testing.T) {
	targets := []int64{1, 0, 2}
	t.Run("cross entropy", func(t *testing.T) {
		lossGradCheck(t, &WeightedCrossEntropy{Weights: []float64{1.5, 0.5, 1.0}}, 3, 3, targets)
	})
	t.Run("focal gamma 2", func(t *testing.T) {
		lossGradCheck(t, &FocalLoss{Gamma: 2, Alpha: []float64{1.5, 0.5, 1.0}}, 3, 3, targets)
	})
	t.Run("focal gamma half", func(t *testing.T) {
		lossGradCheck(t, &FocalLoss{Gamma: 0.5}, 3, 3, targets)
	})
}

func TestLossInputValidation(t *testing.T) {
	logits := mat.NewDense(2, 2, nil)
	ce := &WeightedCrossEntropy{}
	_, _, err := ce.Compute(logits, []int64{0})
	assert.Error(t, err, "row count mismatch")
	_, _, err = ce.Compute(logits, []int64{0, 5})
	assert.Error(t, err, "target out of range")

	fl := &FocalLoss{Gamma: 2, Alpha: []float64{1.0}}
	_, _, err = fl.Compute(logits, []int64{0, 1})
	assert.Error(t, err, "missing alpha entry")
}
