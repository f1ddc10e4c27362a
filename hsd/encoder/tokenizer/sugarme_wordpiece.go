package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
)

// SugarWordPiece wraps sugarme/tokenizer's BERT-style WordPiece model.
type SugarWordPiece struct {
	t         *tk.Tokenizer
	vocabPath string
	maxSeqLen int
}

// NewSugarWordPiece loads vocab.txt and assembles the full BERT pipeline:
// normalizer, pre-tokenizer, post-processor with [CLS]/[SEP], truncation.
func NewSugarWordPiece(vocabPath string, maxSeq int) (*SugarWordPiece, error) {
	fi, err := os.Stat(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("vocab file: %w", err)
	}
	if fi.IsDir() {
		vocabPath = filepath.Join(vocabPath, "vocab.txt")
		if _, err := os.Stat(vocabPath); err != nil {
			return nil, fmt.Errorf("vocab file: %w", err)
		}
	}
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, fmt.Errorf("load wordpiece vocab: %w", err)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	clsID, sepID := discoverSpecialIDs(vocabPath)
	t.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Value: "[SEP]", Id: sepID},
		processor.PostToken{Value: "[CLS]", Id: clsID},
	))
	t.WithTruncation(&tk.TruncationParams{MaxLength: maxSeq})
	t.WithPadding(&tk.PaddingParams{})

	return &SugarWordPiece{t: t, vocabPath: vocabPath, maxSeqLen: maxSeq}, nil
}

// discoverSpecialIDs resolves [CLS]/[SEP] ids, preferring a tokenizer.json
// sitting next to the vocab file and falling back to vocab line order.
// BERT-base defaults (101/102) are returned when neither source has them.
func discoverSpecialIDs(vocabPath string) (clsID, sepID int) {
	clsID, sepID = 101, 102

	tokJSON := filepath.Join(filepath.Dir(vocabPath), "tokenizer.json")
	if b, err := os.ReadFile(tokJSON); err == nil {
		var m struct {
			Model struct {
				Vocab map[string]float64 `json:"vocab"`
			} `json:"model"`
		}
		if json.Unmarshal(b, &m) == nil && m.Model.Vocab != nil {
			if v, ok := m.Model.Vocab["[CLS]"]; ok {
				clsID = int(v)
			}
			if v, ok := m.Model.Vocab["[SEP]"]; ok {
				sepID = int(v)
			}
			return clsID, sepID
		}
	}

	f, err := os.Open(vocabPath)
	if err != nil {
		return clsID, sepID
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for idx := 0; sc.Scan(); idx++ {
		switch sc.Text() {
		case "[CLS]":
			clsID = idx
		case "[SEP]":
			sepID = idx
		}
	}
	return clsID, sepID
}

func (s *SugarWordPiece) Tokenize(texts []string) ([][]int64, [][]int64, error) {
	ids := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	for i, txt := range texts {
		enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(txt)), true)
		if err != nil {
			return nil, nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		uids := enc.GetIds()
		umask := enc.GetAttentionMask()

		// The sugarme padding params do not honor a fixed length, so pad
		// and truncate here to keep every row at maxSeqLen.
		rowIDs := make([]int64, s.maxSeqLen)
		rowMask := make([]int64, s.maxSeqLen)
		n := min(len(uids), s.maxSeqLen)
		for j := 0; j < n; j++ {
			rowIDs[j] = int64(uids[j])
			if j < len(umask) {
				rowMask[j] = int64(umask[j])
			} else {
				rowMask[j] = 1
			}
		}
		ids[i] = rowIDs
		masks[i] = rowMask
	}
	return ids, masks, nil
}

func (s *SugarWordPiece) MaxSeqLen() int { return s.maxSeqLen }

func (s *SugarWordPiece) VocabPath() string { return s.vocabPath }
