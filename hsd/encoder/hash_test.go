package encoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEncoderDeterministic(t *testing.T) {
	enc := NewHashEncoder(64)
	ids := [][]int64{{101, 7592, 102, 0}, {101, 2023, 102, 0}}
	masks := [][]int64{{1, 1, 1, 0}, {1, 1, 1, 0}}

	p1, s1, err := enc.EncodeBatch(context.Background(), ids, masks)
	require.NoError(t, err)
	p2, s2, err := enc.EncodeBatch(context.Background(), ids, masks)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, s1, s2)
	assert.Len(t, p1, 2)
	assert.Len(t, p1[0], 64)
	assert.Len(t, s1[0], 4)
	assert.Len(t, s1[0][0], 64)
}

func TestHashEncoderMaskedPooling(t *testing.T) {
	enc := NewHashEncoder(16)
	// The pad token at position 3 must not affect the pooled vector.
	base := [][]int64{{101, 7592, 102, 0}}
	alt := [][]int64{{101, 7592, 102, 999}}
	mask := [][]int64{{1, 1, 1, 0}}

	p1, _, err := enc.EncodeBatch(context.Background(), base, mask)
	require.NoError(t, err)
	p2, _, err := enc.EncodeBatch(context.Background(), alt, mask)
	require.NoError(t, err)
	assert.Equal(t, p1[0], p2[0])
}

func TestHashEncoderValueRange(t *testing.T) {
	enc := NewHashEncoder(32)
	pooled, _, err := enc.EncodeBatch(context.Background(), [][]int64{{5, 6, 7}}, [][]int64{{1, 1, 1}})
	require.NoError(t, err)
	for _, v := range pooled[0] {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
	}
}

func TestNewEncoderSelection(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantHash bool
	}{
		{"hash by name", "hash", true},
		{"empty defaults to hash", "", true},
		{"dev maps to hash", "dev", true},
		{"unknown falls back", "nope", true},
		{"onnx prefix", "onnx", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(tt.provider, 128, "")
			_, isHash := e.(*hashEncoder)
			assert.Equal(t, tt.wantHash, isHash)
			assert.Equal(t, 128, e.HiddenSize())
		})
	}
}

func TestMaskedMeanPoolAllMasked(t *testing.T) {
	states := [][]float64{{1, 2}, {3, 4}}
	pooled := maskedMeanPool(states, []int64{0, 0}, 2)
	assert.Equal(t, []float64{0, 0}, pooled)
}

func TestResolveDevice(t *testing.T) {
	reset := func() {
		onnxEPPreference = ""
		onnxDeviceID = 0
		onnxBatchSize = 32
	}
	defer reset()

	tests := []struct {
		device    string
		wantEP    string
		wantID    int
		wantBatch int
	}{
		{"cpu", "cpu", 0, 16},
		{"CUDA", "cuda", 0, 16},
		{"cuda:1", "cuda", 1, 16},
		{"dml:0", "dml", 0, 16},
		{"cuda:bogus", "cuda", 0, 16},
		{"", "", 0, 16},
	}
	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			reset()
			ResolveDevice(tt.device, 16)
			assert.Equal(t, tt.wantEP, onnxEPPreference)
			assert.Equal(t, tt.wantID, onnxDeviceID)
			assert.Equal(t, tt.wantBatch, onnxBatchSize)
		})
	}

	// A non-positive batch size keeps the previous chunking.
	reset()
	ResolveDevice("cuda", 0)
	assert.Equal(t, 32, onnxBatchSize)
}
