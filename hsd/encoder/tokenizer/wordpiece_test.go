package tokenizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testVocab(t *testing.T) string {
	return writeVocab(t, []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"hate", "speech", "detect", "##ion", "##s", "un", "##detect",
	})
}

func TestWordPieceGreedySplit(t *testing.T) {
	wp, err := LoadWordPieceFromVocab(testVocab(t), 12)
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want []int64
	}{
		{"known words", "hate speech", []int64{2, 4, 5, 3}},
		{"subword continuation", "detection", []int64{2, 6, 7, 3}},
		{"chained continuations", "detections", []int64{2, 6, 7, 8, 3}},
		{"unknown collapses to unk", "xylophone", []int64{2, 1, 3}},
		{"case folded", "HATE", []int64{2, 4, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, masks, err := wp.Tokenize([]string{tt.text})
			require.NoError(t, err)
			require.Len(t, ids, 1)
			assert.Equal(t, tt.want, ids[0][:len(tt.want)])
			for j := range ids[0] {
				if j < len(tt.want) {
					assert.EqualValues(t, 1, masks[0][j])
				} else {
					assert.EqualValues(t, 0, masks[0][j])
					assert.EqualValues(t, 0, ids[0][j], "pad id")
				}
			}
		})
	}
}

func TestWordPieceFixedLength(t *testing.T) {
	wp, err := LoadWordPieceFromVocab(testVocab(t), 6)
	require.NoError(t, err)

	ids, masks, err := wp.Tokenize([]string{"hate speech detection hate speech hate"})
	require.NoError(t, err)
	assert.Len(t, ids[0], 6)
	assert.Len(t, masks[0], 6)
	// Truncated sequences still end with [SEP].
	assert.EqualValues(t, 3, ids[0][5])
	assert.EqualValues(t, 2, ids[0][0])
}

func TestWordPieceSpecialIDsFromVocab(t *testing.T) {
	path := writeVocab(t, []string{"[PAD]", "hello", "[UNK]", "[CLS]", "[SEP]"})
	wp, err := LoadWordPieceFromVocab(path, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 2, wp.unkID)
	assert.EqualValues(t, 3, wp.clsID)
	assert.EqualValues(t, 4, wp.sepID)
	assert.EqualValues(t, 0, wp.padID)
	assert.Equal(t, path, wp.VocabPath())
	assert.Equal(t, 4, wp.MaxSeqLen())
}

func TestDiscoverSpecialIDs(t *testing.T) {
	t.Run("vocab line order", func(t *testing.T) {
		path := writeVocab(t, []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]"})
		cls, sep := discoverSpecialIDs(path)
		assert.Equal(t, 2, cls)
		assert.Equal(t, 3, sep)
	})
	t.Run("tokenizer.json wins", func(t *testing.T) {
		path := writeVocab(t, []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]"})
		j := `{"model":{"vocab":{"[CLS]":7,"[SEP]":9}}}`
		require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "tokenizer.json"), []byte(j), 0o644))
		cls, sep := discoverSpecialIDs(path)
		assert.Equal(t, 7, cls)
		assert.Equal(t, 9, sep)
	})
	t.Run("defaults when nothing found", func(t *testing.T) {
		path := writeVocab(t, []string{"hello", "world"})
		cls, sep := discoverSpecialIDs(path)
		assert.Equal(t, 101, cls)
		assert.Equal(t, 102, sep)
	})
}
