package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linear is a fully connected layer y = xW + b with weights stored
// [in x out].
type linear struct {
	w *Param
	b *Param
}

func newLinear(name string, in, out int, rng *rand.Rand) *linear {
	l := &linear{
		w: newParam(name+".weight", in, out, false),
		b: newParam(name+".bias", 1, out, true),
	}
	glorotInit(l.w.W, in, out, rng)
	return l
}

func (l *linear) params() []*Param { return []*Param{l.w, l.b} }

// forward computes xW + b for a batch x of shape [batch x in].
func (l *linear) forward(x *mat.Dense) *mat.Dense {
	batch, _ := x.Dims()
	_, out := l.w.W.Dims()
	y := mat.NewDense(batch, out, nil)
	y.Mul(x, l.w.W)
	for i := 0; i < batch; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+l.b.W.At(0, j))
		}
	}
	return y
}

// backward accumulates dW = xᵀ·dY and db = column sums of dY, and returns
// dX = dY·Wᵀ for the caller to keep propagating.
func (l *linear) backward(x, dy *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(x.T(), dy)
	l.w.Grad.Add(l.w.Grad, &dw)

	batch, out := dy.Dims()
	for j := 0; j < out; j++ {
		var s float64
		for i := 0; i < batch; i++ {
			s += dy.At(i, j)
		}
		l.b.Grad.Set(0, j, l.b.Grad.At(0, j)+s)
	}

	in, _ := l.w.W.Dims()
	dx := mat.NewDense(batch, in, nil)
	dx.Mul(dy, l.w.W.T())
	return dx
}
