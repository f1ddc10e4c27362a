package dataset

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// ErrEmptySplit indicates a requested split received zero rows
var ErrEmptySplit = fmt.Errorf("split produced an empty partition")

// SplitRatios hold the train/validation/test proportions. They must sum
// to 1 within a small tolerance.
type SplitRatios struct {
	Train float64
	Val   float64
	Test  float64
}

func (r SplitRatios) Validate() error {
	sum := r.Train + r.Val + r.Test
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("split ratios must sum to 1.0, got %.3f", sum)
	}
	if r.Train <= 0 || r.Val <= 0 || r.Test <= 0 {
		return fmt.Errorf("all split ratios must be positive")
	}
	return nil
}

// Split holds row indices for the three partitions.
type Split struct {
	Train []int
	Val   []int
	Test  []int
}

// StratifiedSplit partitions rows into train/val/test keeping per-class
// proportions. The split runs in two stages: train against the remainder,
// then val against test within the remainder. Rows of a class too small to
// stratify fall where the rounding puts them.
func StratifiedSplit(labels []int64, ratios SplitRatios, rng *rand.Rand) (*Split, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no rows to split", ErrEmptySplit)
	}

	byClass := make(map[int64][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	valShare := ratios.Val / (ratios.Val + ratios.Test)
	out := &Split{}
	for _, c := range classes {
		idxs := byClass[c]
		perm := rng.Perm(len(idxs))
		nTrain := int(float64(len(idxs)) * ratios.Train)
		rest := len(idxs) - nTrain
		nVal := int(float64(rest) * valShare)
		for p, pi := range perm {
			idx := idxs[pi]
			switch {
			case p < nTrain:
				out.Train = append(out.Train, idx)
			case p < nTrain+nVal:
				out.Val = append(out.Val, idx)
			default:
				out.Test = append(out.Test, idx)
			}
		}
	}
	if len(out.Train) == 0 || len(out.Val) == 0 || len(out.Test) == 0 {
		return nil, fmt.Errorf("%w: train=%d val=%d test=%d",
			ErrEmptySplit, len(out.Train), len(out.Val), len(out.Test))
	}
	sort.Ints(out.Train)
	sort.Ints(out.Val)
	sort.Ints(out.Test)
	return out, nil
}

// RandomSplit partitions rows without stratification, used when no label
// column is available.
func RandomSplit(n int, ratios SplitRatios, rng *rand.Rand) (*Split, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: no rows to split", ErrEmptySplit)
	}
	perm := rng.Perm(n)
	nTrain := int(float64(n) * ratios.Train)
	nVal := int(float64(n-nTrain) * (ratios.Val / (ratios.Val + ratios.Test)))
	out := &Split{
		Train: append([]int(nil), perm[:nTrain]...),
		Val:   append([]int(nil), perm[nTrain:nTrain+nVal]...),
		Test:  append([]int(nil), perm[nTrain+nVal:]...),
	}
	if len(out.Train) == 0 || len(out.Val) == 0 || len(out.Test) == 0 {
		return nil, fmt.Errorf("%w: train=%d val=%d test=%d",
			ErrEmptySplit, len(out.Train), len(out.Val), len(out.Test))
	}
	sort.Ints(out.Train)
	sort.Ints(out.Val)
	sort.Ints(out.Test)
	return out, nil
}

// Fold is one cross-validation split: held-out validation rows plus the
// training remainder.
type Fold struct {
	Train []int
	Val   []int
}

// KFold produces k stratified folds. Fold membership is tracked in roaring
// bitmaps so disjointness and full coverage can be verified cheaply before
// the folds are returned.
func KFold(labels []int64, k int, rng *rand.Rand) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("k must be at least 2, got %d", k)
	}
	if len(labels) < k {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, len(labels))
	}

	byClass := make(map[int64][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	members := make([]*roaring.Bitmap, k)
	for f := range members {
		members[f] = roaring.NewBitmap()
	}
	// The round-robin cursor carries over between classes so every fold
	// receives rows even when each class has fewer than k of them.
	next := 0
	for _, c := range classes {
		idxs := byClass[c]
		perm := rng.Perm(len(idxs))
		for _, pi := range perm {
			members[next%k].Add(uint32(idxs[pi]))
			next++
		}
	}

	// Folds must be pairwise disjoint and jointly cover every row.
	union := roaring.NewBitmap()
	for f := 0; f < k; f++ {
		if roaring.And(union, members[f]).GetCardinality() != 0 {
			return nil, fmt.Errorf("fold %d overlaps a previous fold", f)
		}
		union.Or(members[f])
	}
	if union.GetCardinality() != uint64(len(labels)) {
		return nil, fmt.Errorf("folds cover %d of %d rows", union.GetCardinality(), len(labels))
	}

	folds := make([]Fold, k)
	for f := 0; f < k; f++ {
		val := make([]int, 0, members[f].GetCardinality())
		it := members[f].Iterator()
		for it.HasNext() {
			val = append(val, int(it.Next()))
		}
		train := make([]int, 0, len(labels)-len(val))
		rest := roaring.AndNot(union, members[f])
		rit := rest.Iterator()
		for rit.HasNext() {
			train = append(train, int(rit.Next()))
		}
		folds[f] = Fold{Train: train, Val: val}
	}
	return folds, nil
}
