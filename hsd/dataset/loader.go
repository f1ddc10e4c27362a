package dataset

import (
	"fmt"
	"io"
	"math/rand"
)

// Batch is a fixed-size slice of encoded examples. The last batch of an
// epoch may be short.
type Batch struct {
	InputIDs       [][]int64
	AttentionMasks [][]int64
	Labels         []int64
	AuxLabels      []int64
	Texts          []string
}

func (b *Batch) Size() int { return len(b.Labels) }

// BatchLoader iterates a dataset in batches. When a rng is supplied the
// row order is reshuffled at the start of every epoch; otherwise iteration
// is sequential, which evaluation relies on to align predictions with rows.
type BatchLoader struct {
	ds        *Dataset
	batchSize int
	rng       *rand.Rand
	order     []int
	cursor    int
}

func NewBatchLoader(ds *Dataset, batchSize int, rng *rand.Rand) (*BatchLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	l := &BatchLoader{ds: ds, batchSize: batchSize, rng: rng}
	l.Reset()
	return l, nil
}

// NumBatches returns batches per epoch, counting a trailing short batch.
func (l *BatchLoader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

func (l *BatchLoader) DatasetLen() int { return l.ds.Len() }

// Reset rewinds to the start of a fresh epoch, reshuffling when shuffling
// is enabled.
func (l *BatchLoader) Reset() {
	n := l.ds.Len()
	if l.order == nil {
		l.order = make([]int, n)
		for i := range l.order {
			l.order[i] = i
		}
	}
	if l.rng != nil {
		l.rng.Shuffle(n, func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
	l.cursor = 0
}

// Next returns the next batch, or io.EOF once the epoch is exhausted.
func (l *BatchLoader) Next() (*Batch, error) {
	if l.cursor >= len(l.order) {
		return nil, io.EOF
	}
	end := min(l.cursor+l.batchSize, len(l.order))
	batch := &Batch{
		InputIDs:       make([][]int64, 0, end-l.cursor),
		AttentionMasks: make([][]int64, 0, end-l.cursor),
		Labels:         make([]int64, 0, end-l.cursor),
		Texts:          make([]string, 0, end-l.cursor),
	}
	hasAux := len(l.ds.AuxLabels) == l.ds.Len()
	for _, idx := range l.order[l.cursor:end] {
		item, err := l.ds.Get(idx)
		if err != nil {
			return nil, err
		}
		batch.InputIDs = append(batch.InputIDs, item.InputIDs)
		batch.AttentionMasks = append(batch.AttentionMasks, item.AttentionMask)
		batch.Labels = append(batch.Labels, item.Label)
		batch.Texts = append(batch.Texts, item.Text)
		if hasAux {
			batch.AuxLabels = append(batch.AuxLabels, item.AuxLabel)
		}
	}
	l.cursor = end
	return batch, nil
}
