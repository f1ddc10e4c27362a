package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	assert "github.com/ZanzyTHEbar/assert-lib"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder/tokenizer"
)

var (
	// ErrLengthMismatch indicates texts and labels differ in length
	ErrLengthMismatch = fmt.Errorf("texts and labels must have the same length")
	// ErrUnknownBalanceMethod indicates an unrecognized balancing strategy
	ErrUnknownBalanceMethod = fmt.Errorf("unknown balance method")
)

// Item is a single encoded example ready for a model forward pass.
type Item struct {
	InputIDs      []int64
	AttentionMask []int64
	Label         int64
	AuxLabel      int64
	Text          string
}

// Dataset pairs raw texts with class labels and encodes rows on demand.
// AuxLabels is optional and only populated for multi-task training.
type Dataset struct {
	Texts     []string
	Labels    []int64
	AuxLabels []int64
	tok       tokenizer.Tokenizer
	handler   *assert.AssertHandler
}

func NewDataset(texts []string, labels []int64, tok tokenizer.Tokenizer) (*Dataset, error) {
	if len(texts) != len(labels) {
		return nil, fmt.Errorf("%w: %d texts vs %d labels", ErrLengthMismatch, len(texts), len(labels))
	}
	return &Dataset{
		Texts:   texts,
		Labels:  labels,
		tok:     tok,
		handler: assert.NewAssertHandler(),
	}, nil
}

// WithAuxLabels attaches a parallel auxiliary label column.
func (d *Dataset) WithAuxLabels(aux []int64) error {
	if len(aux) != len(d.Texts) {
		return fmt.Errorf("%w: %d aux labels vs %d texts", ErrLengthMismatch, len(aux), len(d.Texts))
	}
	d.AuxLabels = aux
	return nil
}

func (d *Dataset) Len() int { return len(d.Texts) }

// Get encodes row i. Encoding is deterministic: the same row always yields
// the same ids and mask.
func (d *Dataset) Get(i int) (Item, error) {
	if i < 0 || i >= len(d.Texts) {
		return Item{}, fmt.Errorf("index %d out of range [0, %d)", i, len(d.Texts))
	}
	ids, masks, err := d.tok.Tokenize([]string{d.Texts[i]})
	if err != nil {
		return Item{}, fmt.Errorf("tokenize row %d: %w", i, err)
	}
	item := Item{
		InputIDs:      ids[0],
		AttentionMask: masks[0],
		Label:         d.Labels[i],
		Text:          d.Texts[i],
	}
	if len(d.AuxLabels) == len(d.Texts) {
		item.AuxLabel = d.AuxLabels[i]
	}
	return item, nil
}

// ClassDistribution counts rows per class id.
func (d *Dataset) ClassDistribution() map[int64]int {
	dist := make(map[int64]int)
	for _, l := range d.Labels {
		dist[l]++
	}
	return dist
}

// ClassWeights computes inverse-frequency weights:
// weight[c] = total / (numClasses * count[c]). Classes absent from the
// data get weight 1.0.
func (d *Dataset) ClassWeights(numClasses int) []float64 {
	dist := d.ClassDistribution()
	total := float64(len(d.Labels))
	weights := make([]float64, numClasses)
	for c := 0; c < numClasses; c++ {
		if n, ok := dist[int64(c)]; ok && n > 0 {
			weights[c] = total / (float64(numClasses) * float64(n))
		} else {
			weights[c] = 1.0
		}
	}
	return weights
}

// Balanced returns a class-balanced copy of the dataset. "undersample"
// draws without replacement down to the minority count; "oversample" draws
// with replacement up to the majority count. The seeded rng makes the
// result reproducible.
func (d *Dataset) Balanced(method string, rng *rand.Rand) (*Dataset, error) {
	byClass := make(map[int64][]int)
	for i, l := range d.Labels {
		byClass[l] = append(byClass[l], i)
	}
	if len(byClass) == 0 {
		return nil, fmt.Errorf("cannot balance an empty dataset")
	}

	classes := make([]int64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	minCount, maxCount := len(d.Labels), 0
	for _, idxs := range byClass {
		if len(idxs) < minCount {
			minCount = len(idxs)
		}
		if len(idxs) > maxCount {
			maxCount = len(idxs)
		}
	}

	var picked []int
	switch method {
	case "undersample":
		for _, c := range classes {
			idxs := byClass[c]
			perm := rng.Perm(len(idxs))
			for _, p := range perm[:minCount] {
				picked = append(picked, idxs[p])
			}
		}
	case "oversample":
		for _, c := range classes {
			idxs := byClass[c]
			picked = append(picked, idxs...)
			for n := len(idxs); n < maxCount; n++ {
				picked = append(picked, idxs[rng.Intn(len(idxs))])
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBalanceMethod, method)
	}

	out := d.subset(picked)
	// Every class must end at the same count after balancing.
	dist := out.ClassDistribution()
	want := dist[classes[0]]
	for _, c := range classes {
		d.handler.Assert(context.Background(), dist[c] == want,
			"balanced class counts diverged")
	}
	return out, nil
}

func (d *Dataset) subset(indices []int) *Dataset {
	texts := make([]string, len(indices))
	labels := make([]int64, len(indices))
	for i, idx := range indices {
		texts[i] = d.Texts[idx]
		labels[i] = d.Labels[idx]
	}
	out := &Dataset{Texts: texts, Labels: labels, tok: d.tok, handler: d.handler}
	if len(d.AuxLabels) == len(d.Texts) {
		aux := make([]int64, len(indices))
		for i, idx := range indices {
			aux[i] = d.AuxLabels[idx]
		}
		out.AuxLabels = aux
	}
	return out
}

// ToTable materializes the samples back into a table, e.g. to persist a
// balanced variant.
func (d *Dataset) ToTable() *Table {
	return NewTable(d.Texts, d.Labels)
}
