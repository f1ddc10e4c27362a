package tokenizer

import (
	"fmt"
)

// Tokenizer converts raw text to model-ready token IDs and attention masks.
// Every row is padded or truncated to the configured maximum sequence
// length; the mask marks non-pad positions with 1.
type Tokenizer interface {
	Tokenize(texts []string) (inputIDs [][]int64, attentionMasks [][]int64, err error)
	// MaxSeqLen returns the fixed output sequence length.
	MaxSeqLen() int
	// VocabPath returns the path of the vocabulary file backing this
	// tokenizer, used when persisting checkpoints.
	VocabPath() string
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")

// New builds a tokenizer from a vocab.txt path. The sugarme WordPiece
// implementation is preferred; the radix-backed fallback is used when it
// cannot be constructed.
func New(vocabPath string, maxSeq int) (Tokenizer, error) {
	if swp, err := NewSugarWordPiece(vocabPath, maxSeq); err == nil {
		return swp, nil
	}
	wp, err := LoadWordPieceFromVocab(vocabPath, maxSeq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return wp, nil
}
