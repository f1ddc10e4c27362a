package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTableCSV(t *testing.T) {
	path := writeFile(t, "data.csv", "text,label\nhello world,0\nbad stuff,1\n")
	tbl, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NRows())

	texts, err := tbl.Texts("text")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world", "bad stuff"}, texts)

	labels, mapping, err := tbl.Labels("label")
	require.NoError(t, err)
	assert.Nil(t, mapping)
	assert.Equal(t, []int64{0, 1}, labels)
}

func TestLoadTableJSONL(t *testing.T) {
	path := writeFile(t, "data.jsonl",
		`{"text":"one","label":0}`+"\n"+`{"text":"two","label":1}`+"\n")
	tbl, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NRows())

	labels, _, err := tbl.Labels("label")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, labels)
}

func TestLoadTableUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "data.parquet", "whatever")
	_, err := LoadTable(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadTableMissing(t *testing.T) {
	_, err := LoadTable("/nonexistent/data.csv")
	assert.Error(t, err)
}

func TestLabelsStringMappingDeterministic(t *testing.T) {
	path := writeFile(t, "data.csv", "text,label\na,hate\nb,neutral\nc,offensive\nd,hate\n")
	tbl, err := LoadTable(path)
	require.NoError(t, err)

	labels, mapping, err := tbl.Labels("label")
	require.NoError(t, err)
	// Sorted order: hate=0, neutral=1, offensive=2.
	assert.Equal(t, map[string]int64{"hate": 0, "neutral": 1, "offensive": 2}, mapping)
	assert.Equal(t, []int64{0, 1, 2, 0}, labels)
}

func TestLabelsMissingColumn(t *testing.T) {
	path := writeFile(t, "data.csv", "text\nhello\n")
	tbl, err := LoadTable(path)
	require.NoError(t, err)
	_, _, err = tbl.Labels("label")
	assert.Error(t, err)
	_, err = tbl.Texts("body")
	assert.Error(t, err)
	assert.True(t, tbl.HasColumn("text"))
}

func TestTableSubsetAndSave(t *testing.T) {
	tbl := NewTable([]string{"a", "b", "c"}, []int64{0, 1, 0})
	sub, err := tbl.Subset([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NRows())

	texts, err := sub.Texts("text")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, texts)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, sub.SaveCSV(out))
	back, err := LoadTable(out)
	require.NoError(t, err)
	assert.Equal(t, 2, back.NRows())
}
