package training

import (
	"math"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

// EarlyStopper halts training when validation loss stops improving. It
// snapshots the best weights so the model can be restored to its best
// epoch at the end.
type EarlyStopper struct {
	Patience int
	MinDelta float64

	best    float64
	counter int
	weights map[string][]float64
}

func NewEarlyStopper(patience int, minDelta float64) *EarlyStopper {
	return &EarlyStopper{Patience: patience, MinDelta: minDelta, best: math.Inf(1)}
}

// Observe records an epoch's validation loss. It returns true when the
// loss has failed to improve for Patience consecutive epochs.
func (e *EarlyStopper) Observe(valLoss float64, params []*model.Param) bool {
	if valLoss < e.best-e.MinDelta {
		e.best = valLoss
		e.counter = 0
		e.snapshot(params)
		return false
	}
	e.counter++
	return e.counter >= e.Patience
}

// Improved reports whether the most recent Observe call set a new best.
func (e *EarlyStopper) Improved() bool { return e.counter == 0 }

// BestLoss returns the lowest validation loss seen so far.
func (e *EarlyStopper) BestLoss() float64 { return e.best }

func (e *EarlyStopper) snapshot(params []*model.Param) {
	e.weights = make(map[string][]float64, len(params))
	for _, p := range params {
		r, c := p.W.Dims()
		flat := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				flat = append(flat, p.W.At(i, j))
			}
		}
		e.weights[p.Name] = flat
	}
}

// Restore writes the best snapshot back into the params. It is a no-op
// when no improvement was ever observed.
func (e *EarlyStopper) Restore(params []*model.Param) {
	if e.weights == nil {
		return
	}
	for _, p := range params {
		flat, ok := e.weights[p.Name]
		if !ok {
			continue
		}
		r, c := p.W.Dims()
		if len(flat) != r*c {
			continue
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				p.W.Set(i, j, flat[i*c+j])
			}
		}
	}
}
