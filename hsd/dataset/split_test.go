package dataset

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRatiosValidate(t *testing.T) {
	assert.NoError(t, SplitRatios{0.7, 0.15, 0.15}.Validate())
	assert.Error(t, SplitRatios{0.7, 0.15, 0.25}.Validate())
	assert.Error(t, SplitRatios{1.0, 0.0, 0.0}.Validate())
}

func TestStratifiedSplitProportionsAndCoverage(t *testing.T) {
	labels := make([]int64, 200)
	for i := range labels {
		if i < 140 {
			labels[i] = 0
		} else {
			labels[i] = 1
		}
	}
	s, err := StratifiedSplit(labels, SplitRatios{0.7, 0.15, 0.15}, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, 200, len(s.Train)+len(s.Val)+len(s.Test))
	assert.InDelta(t, 140, len(s.Train), 3)
	assert.InDelta(t, 30, len(s.Val), 3)
	assert.InDelta(t, 30, len(s.Test), 3)

	// No row appears in more than one partition.
	seen := make(map[int]bool, 200)
	for _, part := range [][]int{s.Train, s.Val, s.Test} {
		for _, idx := range part {
			assert.False(t, seen[idx], "row %d assigned twice", idx)
			seen[idx] = true
		}
	}

	// Class proportions carry into each partition.
	frac := func(part []int) float64 {
		var ones int
		for _, idx := range part {
			if labels[idx] == 1 {
				ones++
			}
		}
		return float64(ones) / float64(len(part))
	}
	assert.InDelta(t, 0.3, frac(s.Train), 0.05)
	assert.InDelta(t, 0.3, frac(s.Val), 0.08)
	assert.InDelta(t, 0.3, frac(s.Test), 0.08)
}

func TestStratifiedSplitEmpty(t *testing.T) {
	_, err := StratifiedSplit(nil, SplitRatios{0.7, 0.15, 0.15}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrEmptySplit)
}

func TestStratifiedSplitTooFewRows(t *testing.T) {
	_, err := StratifiedSplit([]int64{0, 1}, SplitRatios{0.7, 0.15, 0.15}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrEmptySplit)
}

func TestRandomSplitCoverage(t *testing.T) {
	s, err := RandomSplit(100, SplitRatios{0.7, 0.15, 0.15}, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	all := append(append(append([]int{}, s.Train...), s.Val...), s.Test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}
}

func TestKFoldDisjointAndCovering(t *testing.T) {
	labels := make([]int64, 50)
	for i := range labels {
		labels[i] = int64(i % 2)
	}
	folds, err := KFold(labels, 5, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, 50, len(f.Train)+len(f.Val))
		for _, idx := range f.Val {
			seen[idx]++
		}
	}
	// Each row is held out exactly once across folds.
	assert.Len(t, seen, 50)
	for idx, n := range seen {
		assert.Equal(t, 1, n, "row %d held out %d times", idx, n)
	}
}

func TestKFoldErrors(t *testing.T) {
	_, err := KFold([]int64{0, 1, 0}, 1, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
	_, err = KFold([]int64{0, 1}, 5, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestKFoldSmallClassesFillEveryFold(t *testing.T) {
	// Two classes of two rows across three folds: no fold may end up
	// with an empty validation set.
	labels := []int64{0, 0, 1, 1}
	folds, err := KFold(labels, 3, rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := make(map[int]int)
	for i, f := range folds {
		assert.NotEmpty(t, f.Val, "fold %d has no validation rows", i)
		assert.Equal(t, len(labels), len(f.Train)+len(f.Val))
		for _, idx := range f.Val {
			seen[idx]++
		}
	}
	assert.Len(t, seen, len(labels))
}
