package training

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

// AdamW implements decoupled weight decay Adam. Decay is skipped for
// params flagged NoDecay and the effective step size honors each param's
// LRScale.
type AdamW struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	params []*model.Param
	m      []*mat.Dense
	v      []*mat.Dense
	step   int
}

func NewAdamW(params []*model.Param, lr, weightDecay float64) *AdamW {
	opt := &AdamW{
		LR:          lr,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		params:      params,
		m:           make([]*mat.Dense, len(params)),
		v:           make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.W.Dims()
		opt.m[i] = mat.NewDense(r, c, nil)
		opt.v[i] = mat.NewDense(r, c, nil)
	}
	return opt
}

// Step applies one update from the accumulated gradients, scaled by
// lrMult from the scheduler, then leaves the gradients untouched for the
// caller to zero.
func (o *AdamW) Step(lrMult float64) {
	o.step++
	bc1 := 1.0 - math.Pow(o.Beta1, float64(o.step))
	bc2 := 1.0 - math.Pow(o.Beta2, float64(o.step))
	for i, p := range o.params {
		lr := o.LR * lrMult
		if p.LRScale > 0 {
			lr *= p.LRScale
		}
		r, c := p.W.Dims()
		for ri := 0; ri < r; ri++ {
			for ci := 0; ci < c; ci++ {
				g := p.Grad.At(ri, ci)
				m := o.Beta1*o.m[i].At(ri, ci) + (1-o.Beta1)*g
				v := o.Beta2*o.v[i].At(ri, ci) + (1-o.Beta2)*g*g
				o.m[i].Set(ri, ci, m)
				o.v[i].Set(ri, ci, v)

				mhat := m / bc1
				vhat := v / bc2
				w := p.W.At(ri, ci)
				w -= lr * mhat / (math.Sqrt(vhat) + o.Eps)
				if o.WeightDecay > 0 && !p.NoDecay {
					w -= lr * o.WeightDecay * p.W.At(ri, ci)
				}
				p.W.Set(ri, ci, w)
			}
		}
	}
}

// ZeroGrad clears every param's gradient accumulator.
func (o *AdamW) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}
