package encoder

import (
	"context"
	"strings"
)

// Encoder maps tokenized batches to dense representations. It returns both
// a pooled sentence vector per row and the per-token hidden states, which
// attention-pooled classifier heads consume directly.
type Encoder interface {
	HiddenSize() int
	EncodeBatch(ctx context.Context, inputIDs, attentionMasks [][]int64) (pooled [][]float64, states [][][]float64, err error)
}

// NewEncoder selects an encoder by name (e.g., "hash", "onnx").
// modelPath points at the exported model file for ONNX-backed encoders.
// Unknown providers fall back to the deterministic hash encoder.
func NewEncoder(providerName string, hiddenSize int, modelPath string) Encoder {
	if hiddenSize <= 0 {
		hiddenSize = 384
	}
	name := strings.ToLower(strings.TrimSpace(providerName))
	switch name {
	case "hash", "", "dev":
		return NewHashEncoder(hiddenSize)
	default:
		if strings.HasPrefix(name, "onnx") {
			return newONNXEncoder(hiddenSize, modelPath)
		}
		return NewHashEncoder(hiddenSize)
	}
}

// maskedMeanPool averages token states over positions where the mask is 1.
// A fully masked row yields the zero vector.
func maskedMeanPool(states [][]float64, mask []int64, hidden int) []float64 {
	pooled := make([]float64, hidden)
	var n float64
	for t, st := range states {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		for j := 0; j < hidden; j++ {
			pooled[j] += st[j]
		}
		n++
	}
	if n > 0 {
		for j := range pooled {
			pooled[j] /= n
		}
	}
	return pooled
}
