package dataset

import (
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenRowDataset(t *testing.T) *Dataset {
	t.Helper()
	texts := make([]string, 10)
	labels := make([]int64, 10)
	for i := range texts {
		texts[i] = "hate speech"
		labels[i] = int64(i % 2)
	}
	ds, err := NewDataset(texts, labels, testTokenizer(t))
	require.NoError(t, err)
	return ds
}

func TestBatchLoaderCounts(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		wantNum   int
		wantSizes []int
	}{
		{"even division", 5, 2, []int{5, 5}},
		{"trailing short batch", 4, 3, []int{4, 4, 2}},
		{"single batch", 16, 1, []int{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewBatchLoader(tenRowDataset(t), tt.batchSize, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNum, l.NumBatches())

			var sizes []int
			for {
				b, err := l.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				sizes = append(sizes, b.Size())
			}
			assert.Equal(t, tt.wantSizes, sizes)

			_, err = l.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestBatchLoaderInvalidBatchSize(t *testing.T) {
	_, err := NewBatchLoader(tenRowDataset(t), 0, nil)
	assert.Error(t, err)
}

func TestBatchLoaderSequentialOrder(t *testing.T) {
	ds, err := NewDataset([]string{"a", "b", "c"}, []int64{0, 1, 2}, testTokenizer(t))
	require.NoError(t, err)
	l, err := NewBatchLoader(ds, 2, nil)
	require.NoError(t, err)

	b1, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, b1.Labels)
	b2, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, b2.Labels)
}

func TestBatchLoaderShuffleReshufflesPerEpoch(t *testing.T) {
	texts := make([]string, 64)
	labels := make([]int64, 64)
	for i := range texts {
		texts[i] = "hate"
		labels[i] = int64(i)
	}
	ds, err := NewDataset(texts, labels, testTokenizer(t))
	require.NoError(t, err)

	l, err := NewBatchLoader(ds, 64, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	epoch := func() []int64 {
		b, err := l.Next()
		require.NoError(t, err)
		return b.Labels
	}
	first := epoch()
	l.Reset()
	second := epoch()

	assert.NotEqual(t, first, second)
	assert.ElementsMatch(t, first, second)
}

func TestBatchLoaderCarriesAuxLabels(t *testing.T) {
	ds, err := NewDataset([]string{"a", "b"}, []int64{0, 1}, testTokenizer(t))
	require.NoError(t, err)
	require.NoError(t, ds.WithAuxLabels([]int64{5, 6}))

	l, err := NewBatchLoader(ds, 2, nil)
	require.NoError(t, err)
	b, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, b.AuxLabels)
}
