package tokenizer

import (
	"bufio"
	"os"
	"strings"

	radix "github.com/armon/go-radix"
)

// WordPiece is a self-contained greedy longest-match-first tokenizer used
// when the sugarme pipeline cannot be built. Word-initial pieces and "##"
// continuation pieces live in separate radix trees so LongestPrefix gives
// the maximal subword at each cursor position.
type WordPiece struct {
	initial   *radix.Tree
	continued *radix.Tree
	vocabPath string
	unkID     int64
	clsID     int64
	sepID     int64
	padID     int64
	maxSeqLen int
}

func LoadWordPieceFromVocab(path string, maxSeq int) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wp := &WordPiece{
		initial:   radix.New(),
		continued: radix.New(),
		vocabPath: path,
		unkID:     100,
		clsID:     101,
		sepID:     102,
		maxSeqLen: maxSeq,
	}
	var idx int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		switch tok {
		case "[UNK]":
			wp.unkID = idx
		case "[CLS]":
			wp.clsID = idx
		case "[SEP]":
			wp.sepID = idx
		case "[PAD]":
			wp.padID = idx
		}
		if piece, ok := strings.CutPrefix(tok, "##"); ok {
			wp.continued.Insert(piece, idx)
		} else {
			wp.initial.Insert(tok, idx)
		}
		idx++
	}
	return wp, scanner.Err()
}

// tokenizeWord splits a single whitespace token into subword ids. A word
// that cannot be fully covered collapses to a single [UNK], matching the
// reference WordPiece behavior.
func (w *WordPiece) tokenizeWord(word string) []int64 {
	var out []int64
	rest := word
	tree := w.initial
	for len(rest) > 0 {
		prefix, id, ok := tree.LongestPrefix(rest)
		if !ok || prefix == "" {
			return []int64{w.unkID}
		}
		out = append(out, id.(int64))
		rest = rest[len(prefix):]
		tree = w.continued
	}
	return out
}

func (w *WordPiece) Tokenize(texts []string) ([][]int64, [][]int64, error) {
	ids := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	for i, t := range texts {
		seq := make([]int64, 0, w.maxSeqLen)
		mask := make([]int64, 0, w.maxSeqLen)
		seq = append(seq, w.clsID)
		mask = append(mask, 1)
	words:
		for _, word := range strings.Fields(strings.ToLower(t)) {
			for _, id := range w.tokenizeWord(word) {
				if len(seq) >= w.maxSeqLen-1 {
					break words
				}
				seq = append(seq, id)
				mask = append(mask, 1)
			}
		}
		seq = append(seq, w.sepID)
		mask = append(mask, 1)
		for len(seq) < w.maxSeqLen {
			seq = append(seq, w.padID)
			mask = append(mask, 0)
		}
		ids[i] = seq
		masks[i] = mask
	}
	return ids, masks, nil
}

func (w *WordPiece) MaxSeqLen() int { return w.maxSeqLen }

func (w *WordPiece) VocabPath() string { return w.vocabPath }
