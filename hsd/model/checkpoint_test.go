package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
)

func TestCheckpointRoundTrip(t *testing.T) {
	for _, arch := range []string{ArchBase, ArchMultiTask, ArchHierarchical, ArchAttention} {
		t.Run(arch, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "ckpt")
			enc := encoder.NewHashEncoder(testHidden)
			clf, err := New(testConfig(arch), enc, 42)
			require.NoError(t, err)

			vocab := filepath.Join(t.TempDir(), "vocab.txt")
			require.NoError(t, os.WriteFile(vocab, []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\n"), 0o644))

			meta := map[string]any{"best_val_loss": 0.42}
			require.NoError(t, Save(dir, clf, vocab, meta))

			for _, f := range []string{weightsFile, configFile, metadataFile, vocabFile} {
				_, err := os.Stat(filepath.Join(dir, f))
				assert.NoError(t, err, f)
			}

			loaded, err := Load(dir, enc)
			require.NoError(t, err)
			assert.Equal(t, clf.Config(), loaded.Config())

			ids, masks := testBatch()
			want, err := clf.Forward(context.Background(), ids, masks, false)
			require.NoError(t, err)
			got, err := loaded.Forward(context.Background(), ids, masks, false)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(want.Logits, got.Logits, 1e-12),
				"restored logits diverge")

			var readBack map[string]any
			require.NoError(t, ReadMetadata(dir, &readBack))
			assert.InDelta(t, 0.42, readBack["best_val_loss"], 1e-12)
		})
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestLoadRejectsShapeMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ckpt")
	clf, err := New(testConfig(ArchBase), encoder.NewHashEncoder(testHidden), 1)
	require.NoError(t, err)
	require.NoError(t, Save(dir, clf, "", nil))

	// Reload under a config expecting a different label count.
	cfg := testConfig(ArchBase)
	cfg.NumLabels = 5
	require.NoError(t, writeJSONAtomic(filepath.Join(dir, configFile), cfg))

	_, err = Load(dir, encoder.NewHashEncoder(testHidden))
	assert.Error(t, err)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ckpt")
	clf, err := New(testConfig(ArchBase), encoder.NewHashEncoder(testHidden), 1)
	require.NoError(t, err)

	require.NoError(t, Save(dir, clf, "", nil))
	require.NoError(t, Save(dir, clf, "", nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
