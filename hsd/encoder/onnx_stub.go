//go:build !onnx
// +build !onnx

package encoder

import (
	"context"
	"fmt"
)

// onnxEncoder is a stub used when built without the "onnx" build tag.
type onnxEncoder struct{ hidden int }

func newONNXEncoder(hidden int, modelPath string) Encoder { return &onnxEncoder{hidden: hidden} }

func (p *onnxEncoder) HiddenSize() int { return p.hidden }

func (p *onnxEncoder) EncodeBatch(ctx context.Context, inputIDs, attentionMasks [][]int64) ([][]float64, [][][]float64, error) {
	return nil, nil, fmt.Errorf("onnx encoder not available: build with -tags onnx and provide a model export")
}
