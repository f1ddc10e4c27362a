package model

import (
	"context"
	"math"
	"math/rand"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"

	"gonum.org/v1/gonum/mat"
)

// attentionClassifier pools token states with learned per-head query
// vectors instead of mean pooling. Each head computes a masked softmax
// over scaled dot products with its query; the head outputs are
// concatenated and projected to logits.
type attentionClassifier struct {
	cfg   Config
	enc   encoder.Encoder
	query *Param // [heads x hidden]
	drop  *dropout
	head  *linear
}

func newAttentionClassifier(cfg Config, enc encoder.Encoder, rng *rand.Rand) *attentionClassifier {
	q := newParam("attention.query", cfg.AttentionHeads, cfg.HiddenSize, false)
	glorotInit(q.W, cfg.HiddenSize, cfg.HiddenSize, rng)
	return &attentionClassifier{
		cfg:   cfg,
		enc:   enc,
		query: q,
		drop:  newDropout(cfg.DropoutRate, rng),
		head:  newLinear("classifier", cfg.AttentionHeads*cfg.HiddenSize, cfg.NumLabels, rng),
	}
}

func (m *attentionClassifier) Config() Config { return m.cfg }

func (m *attentionClassifier) Params() []*Param {
	return append([]*Param{m.query}, m.head.params()...)
}

func (m *attentionClassifier) Forward(ctx context.Context, inputIDs, attentionMasks [][]int64, train bool) (*Forwarded, error) {
	_, states, err := m.enc.EncodeBatch(ctx, inputIDs, attentionMasks)
	if err != nil {
		return nil, err
	}
	weights, pooled := m.pool(states, attentionMasks)
	dropped, dropBack := m.drop.apply(pooled, train)
	logits := m.head.forward(dropped)
	scale := 1.0 / math.Sqrt(float64(m.cfg.HiddenSize))

	return &Forwarded{
		Logits:    logits,
		Attention: weights,
		Backward: func(dLogits, _ *mat.Dense) {
			dPooled := dropBack(m.head.backward(dropped, dLogits))
			m.backwardQueries(states, weights, dPooled, scale)
		},
	}, nil
}

// pool runs the per-head attention pooling over a batch of token states.
// weights[i] is [heads * seq], row-major by head, kept for backward and
// surfaced for interpretability; pooled is [batch x heads*hidden].
func (m *attentionClassifier) pool(states [][][]float64, attentionMasks [][]int64) ([][]float64, *mat.Dense) {
	batch := len(states)
	heads := m.cfg.AttentionHeads
	hidden := m.cfg.HiddenSize
	scale := 1.0 / math.Sqrt(float64(hidden))

	weights := make([][]float64, batch)
	pooled := mat.NewDense(batch, heads*hidden, nil)
	for i, rowStates := range states {
		seq := len(rowStates)
		var mask []int64
		if i < len(attentionMasks) {
			mask = attentionMasks[i]
		}
		weights[i] = make([]float64, heads*seq)
		for h := 0; h < heads; h++ {
			attn := m.headWeights(rowStates, mask, h, scale)
			copy(weights[i][h*seq:(h+1)*seq], attn)
			for t, a := range attn {
				if a == 0 {
					continue
				}
				for j := 0; j < hidden; j++ {
					pooled.Set(i, h*hidden+j, pooled.At(i, h*hidden+j)+a*rowStates[t][j])
				}
			}
		}
	}
	return weights, pooled
}

// Embeddings returns the attention-pooled representation without dropout.
func (m *attentionClassifier) Embeddings(ctx context.Context, inputIDs, attentionMasks [][]int64) (*mat.Dense, error) {
	_, states, err := m.enc.EncodeBatch(ctx, inputIDs, attentionMasks)
	if err != nil {
		return nil, err
	}
	_, pooled := m.pool(states, attentionMasks)
	return pooled, nil
}

// headWeights computes one head's masked softmax attention over a row.
// Fully masked rows get zero weights everywhere.
func (m *attentionClassifier) headWeights(rowStates [][]float64, mask []int64, h int, scale float64) []float64 {
	seq := len(rowStates)
	hidden := m.cfg.HiddenSize
	scores := make([]float64, seq)
	maxScore := math.Inf(-1)
	for t := 0; t < seq; t++ {
		if t < len(mask) && mask[t] == 0 {
			scores[t] = math.Inf(-1)
			continue
		}
		var s float64
		for j := 0; j < hidden; j++ {
			s += m.query.W.At(h, j) * rowStates[t][j]
		}
		scores[t] = s * scale
		if scores[t] > maxScore {
			maxScore = scores[t]
		}
	}
	attn := make([]float64, seq)
	if math.IsInf(maxScore, -1) {
		return attn
	}
	var sum float64
	for t := 0; t < seq; t++ {
		if math.IsInf(scores[t], -1) {
			continue
		}
		attn[t] = math.Exp(scores[t] - maxScore)
		sum += attn[t]
	}
	for t := range attn {
		attn[t] /= sum
	}
	return attn
}

// backwardQueries pushes the pooled-output gradient through the softmax
// into the query vectors. With a the attention weights and g_t = dL/da_t,
// the score gradient is ds_t = a_t (g_t - Σ_j a_j g_j).
func (m *attentionClassifier) backwardQueries(states [][][]float64, weights [][]float64, dPooled *mat.Dense, scale float64) {
	heads := m.cfg.AttentionHeads
	hidden := m.cfg.HiddenSize
	for i, rowStates := range states {
		seq := len(rowStates)
		for h := 0; h < heads; h++ {
			attn := weights[i][h*seq : (h+1)*seq]
			dAttn := make([]float64, seq)
			var dot float64
			for t := 0; t < seq; t++ {
				if attn[t] == 0 {
					continue
				}
				var g float64
				for j := 0; j < hidden; j++ {
					g += dPooled.At(i, h*hidden+j) * rowStates[t][j]
				}
				dAttn[t] = g
				dot += attn[t] * g
			}
			for t := 0; t < seq; t++ {
				if attn[t] == 0 {
					continue
				}
				ds := attn[t] * (dAttn[t] - dot) * scale
				for j := 0; j < hidden; j++ {
					m.query.Grad.Set(h, j, m.query.Grad.At(h, j)+ds*rowStates[t][j])
				}
			}
		}
	}
}
