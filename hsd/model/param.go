package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable tensor with its gradient accumulator. NoDecay
// exempts biases from weight decay; LRScale lets a head train at a
// multiple of the base learning rate.
type Param struct {
	Name    string
	W       *mat.Dense
	Grad    *mat.Dense
	NoDecay bool
	LRScale float64
}

func newParam(name string, rows, cols int, noDecay bool) *Param {
	return &Param{
		Name:    name,
		W:       mat.NewDense(rows, cols, nil),
		Grad:    mat.NewDense(rows, cols, nil),
		NoDecay: noDecay,
		LRScale: 1.0,
	}
}

// ZeroGrad clears the gradient accumulator in place.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// glorotInit fills a weight matrix with uniform Glorot values so early
// logits stay in a stable range.
func glorotInit(w *mat.Dense, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	r, c := w.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			w.Set(i, j, (rng.Float64()*2-1)*limit)
		}
	}
}

// GradNorm returns the global L2 norm across all params' gradients.
func GradNorm(params []*Param) float64 {
	var sum float64
	for _, p := range params {
		r, c := p.Grad.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				g := p.Grad.At(i, j)
				sum += g * g
			}
		}
	}
	return math.Sqrt(sum)
}

// ClipGradNorm rescales all gradients so their global norm does not
// exceed maxNorm. Returns the pre-clip norm.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		p.Grad.Scale(scale, p.Grad)
	}
	return norm
}
