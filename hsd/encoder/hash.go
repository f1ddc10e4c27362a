package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// hashEncoder produces deterministic pseudo-embeddings from token ids. It
// carries no learned weights, so it is suitable for tests and for exercising
// the training loop without a model export on disk.
type hashEncoder struct{ hidden int }

func NewHashEncoder(hidden int) *hashEncoder {
	if hidden <= 0 {
		hidden = 384
	}
	return &hashEncoder{hidden: hidden}
}

func (h *hashEncoder) HiddenSize() int { return h.hidden }

// tokenVector derives a fixed vector from a token id by repeating its
// SHA-256 digest across the hidden dimension, scaled to roughly [-1, 1).
func (h *hashEncoder) tokenVector(id int64) []float64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	sum := sha256.Sum256(buf[:])
	vec := make([]float64, h.hidden)
	for j := 0; j < h.hidden; j++ {
		b := sum[j%len(sum)]
		vec[j] = (float64(int(b)) - 128.0) / 128.0
	}
	return vec
}

func (h *hashEncoder) EncodeBatch(ctx context.Context, inputIDs, attentionMasks [][]int64) ([][]float64, [][][]float64, error) {
	pooled := make([][]float64, len(inputIDs))
	states := make([][][]float64, len(inputIDs))
	for i, row := range inputIDs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rowStates := make([][]float64, len(row))
		for t, id := range row {
			rowStates[t] = h.tokenVector(id)
		}
		var mask []int64
		if i < len(attentionMasks) {
			mask = attentionMasks[i]
		}
		states[i] = rowStates
		pooled[i] = maskedMeanPool(rowStates, mask, h.hidden)
	}
	return pooled, states, nil
}
