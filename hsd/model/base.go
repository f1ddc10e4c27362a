package model

import (
	"context"
	"math/rand"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"

	"gonum.org/v1/gonum/mat"
)

// baseClassifier is the plain variant: pooled encoding, dropout, one
// linear head.
type baseClassifier struct {
	cfg  Config
	enc  encoder.Encoder
	drop *dropout
	head *linear
}

func newBaseClassifier(cfg Config, enc encoder.Encoder, rng *rand.Rand) *baseClassifier {
	return &baseClassifier{
		cfg:  cfg,
		enc:  enc,
		drop: newDropout(cfg.DropoutRate, rng),
		head: newLinear("classifier", cfg.HiddenSize, cfg.NumLabels, rng),
	}
}

func (m *baseClassifier) Config() Config   { return m.cfg }
func (m *baseClassifier) Params() []*Param { return m.head.params() }

func (m *baseClassifier) Embeddings(ctx context.Context, inputIDs, attentionMasks [][]int64) (*mat.Dense, error) {
	return encoderEmbeddings(ctx, m.enc, inputIDs, attentionMasks, m.cfg.HiddenSize)
}

func (m *baseClassifier) Forward(ctx context.Context, inputIDs, attentionMasks [][]int64, train bool) (*Forwarded, error) {
	pooled, _, err := m.enc.EncodeBatch(ctx, inputIDs, attentionMasks)
	if err != nil {
		return nil, err
	}
	x := pooledMatrix(pooled, m.cfg.HiddenSize)
	dropped, _ := m.drop.apply(x, train)
	logits := m.head.forward(dropped)

	return &Forwarded{
		Logits: logits,
		Backward: func(dLogits, _ *mat.Dense) {
			// The encoder is frozen, so the gradient stops at the head input.
			m.head.backward(dropped, dLogits)
		},
	}, nil
}
