package model

import (
	"context"
	"math/rand"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"

	"gonum.org/v1/gonum/mat"
)

// hierarchicalClassifier predicts a coarse decision first (hateful or
// not), then feeds the coarse logits alongside the pooled encoding into
// the fine-grained head. The fine loss therefore trains the coarse head
// too, through the concatenated input.
type hierarchicalClassifier struct {
	cfg    Config
	enc    encoder.Encoder
	drop   *dropout
	coarse *linear
	fine   *linear
}

func newHierarchicalClassifier(cfg Config, enc encoder.Encoder, rng *rand.Rand) *hierarchicalClassifier {
	return &hierarchicalClassifier{
		cfg:    cfg,
		enc:    enc,
		drop:   newDropout(cfg.DropoutRate, rng),
		coarse: newLinear("coarse_classifier", cfg.HiddenSize, cfg.NumCoarseLabels, rng),
		fine:   newLinear("fine_classifier", cfg.HiddenSize+cfg.NumCoarseLabels, cfg.NumLabels, rng),
	}
}

func (m *hierarchicalClassifier) Config() Config { return m.cfg }

func (m *hierarchicalClassifier) Embeddings(ctx context.Context, inputIDs, attentionMasks [][]int64) (*mat.Dense, error) {
	return encoderEmbeddings(ctx, m.enc, inputIDs, attentionMasks, m.cfg.HiddenSize)
}

func (m *hierarchicalClassifier) Params() []*Param {
	return append(m.coarse.params(), m.fine.params()...)
}

func (m *hierarchicalClassifier) Forward(ctx context.Context, inputIDs, attentionMasks [][]int64, train bool) (*Forwarded, error) {
	pooled, _, err := m.enc.EncodeBatch(ctx, inputIDs, attentionMasks)
	if err != nil {
		return nil, err
	}
	x := pooledMatrix(pooled, m.cfg.HiddenSize)
	dropped, _ := m.drop.apply(x, train)
	coarseLogits := m.coarse.forward(dropped)

	batch := len(pooled)
	hidden := m.cfg.HiddenSize
	nc := m.cfg.NumCoarseLabels
	concat := mat.NewDense(batch, hidden+nc, nil)
	for i := 0; i < batch; i++ {
		for j := 0; j < hidden; j++ {
			concat.Set(i, j, dropped.At(i, j))
		}
		for j := 0; j < nc; j++ {
			concat.Set(i, hidden+j, coarseLogits.At(i, j))
		}
	}
	fineLogits := m.fine.forward(concat)

	return &Forwarded{
		Logits:    fineLogits,
		AuxLogits: coarseLogits,
		Backward: func(dFine, dCoarse *mat.Dense) {
			dConcat := m.fine.backward(concat, dFine)
			// The tail columns of dConcat are the fine loss's gradient
			// w.r.t. the coarse logits; fold them into the coarse path.
			dCoarseTotal := mat.NewDense(batch, nc, nil)
			for i := 0; i < batch; i++ {
				for j := 0; j < nc; j++ {
					g := dConcat.At(i, hidden+j)
					if dCoarse != nil {
						g += dCoarse.At(i, j)
					}
					dCoarseTotal.Set(i, j, g)
				}
			}
			m.coarse.backward(dropped, dCoarseTotal)
		},
	}, nil
}
