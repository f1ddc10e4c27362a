package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// dropout applies inverted dropout: surviving activations are scaled by
// 1/(1-rate) at train time so inference needs no rescaling.
type dropout struct {
	rate float64
	rng  *rand.Rand
}

func newDropout(rate float64, rng *rand.Rand) *dropout {
	return &dropout{rate: rate, rng: rng}
}

// apply returns the (possibly) masked activations and a function that
// applies the same mask to an upstream gradient. At eval time, or with a
// zero rate, both are identity.
func (d *dropout) apply(x *mat.Dense, train bool) (*mat.Dense, func(dy *mat.Dense) *mat.Dense) {
	if !train || d.rate <= 0 {
		return x, func(dy *mat.Dense) *mat.Dense { return dy }
	}
	rows, cols := x.Dims()
	keep := 1.0 - d.rate
	scale := 1.0 / keep
	mask := mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if d.rng.Float64() < keep {
				mask.Set(i, j, scale)
				out.Set(i, j, x.At(i, j)*scale)
			}
		}
	}
	return out, func(dy *mat.Dense) *mat.Dense {
		var dx mat.Dense
		dx.MulElem(dy, mask)
		return &dx
	}
}
