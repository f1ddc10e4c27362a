package model

import (
	"context"
	"math/rand"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"

	"gonum.org/v1/gonum/mat"
)

// multiTaskClassifier shares the dropped pooled encoding between a main
// head and an auxiliary head (e.g. hate vs target-group prediction).
type multiTaskClassifier struct {
	cfg  Config
	enc  encoder.Encoder
	drop *dropout
	main *linear
	aux  *linear
}

func newMultiTaskClassifier(cfg Config, enc encoder.Encoder, rng *rand.Rand) *multiTaskClassifier {
	return &multiTaskClassifier{
		cfg:  cfg,
		enc:  enc,
		drop: newDropout(cfg.DropoutRate, rng),
		main: newLinear("classifier", cfg.HiddenSize, cfg.NumLabels, rng),
		aux:  newLinear("aux_classifier", cfg.HiddenSize, cfg.NumAuxLabels, rng),
	}
}

func (m *multiTaskClassifier) Config() Config { return m.cfg }

func (m *multiTaskClassifier) Embeddings(ctx context.Context, inputIDs, attentionMasks [][]int64) (*mat.Dense, error) {
	return encoderEmbeddings(ctx, m.enc, inputIDs, attentionMasks, m.cfg.HiddenSize)
}

func (m *multiTaskClassifier) Params() []*Param {
	return append(m.main.params(), m.aux.params()...)
}

func (m *multiTaskClassifier) Forward(ctx context.Context, inputIDs, attentionMasks [][]int64, train bool) (*Forwarded, error) {
	pooled, _, err := m.enc.EncodeBatch(ctx, inputIDs, attentionMasks)
	if err != nil {
		return nil, err
	}
	x := pooledMatrix(pooled, m.cfg.HiddenSize)
	dropped, _ := m.drop.apply(x, train)
	logits := m.main.forward(dropped)
	auxLogits := m.aux.forward(dropped)

	return &Forwarded{
		Logits:    logits,
		AuxLogits: auxLogits,
		Backward: func(dLogits, dAuxLogits *mat.Dense) {
			m.main.backward(dropped, dLogits)
			if dAuxLogits != nil {
				m.aux.backward(dropped, dAuxLogits)
			}
		},
	}, nil
}
