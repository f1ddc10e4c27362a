package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrUnsupportedFormat indicates the file extension does not map to a known loader
var ErrUnsupportedFormat = fmt.Errorf("unsupported data format")

// Table wraps a dataframe holding raw rows prior to tokenization. Column
// access goes through it so the rest of the pipeline never touches gota
// directly.
type Table struct {
	df dataframe.DataFrame
}

// LoadTable reads a dataset file, switching on extension. CSV, JSON (array
// of objects) and JSONL are supported.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		df := dataframe.ReadCSV(f)
		if df.Err != nil {
			return nil, fmt.Errorf("read csv: %w", df.Err)
		}
		return &Table{df: df}, nil
	case ".json":
		df := dataframe.ReadJSON(f)
		if df.Err != nil {
			return nil, fmt.Errorf("read json: %w", df.Err)
		}
		return &Table{df: df}, nil
	case ".jsonl":
		return loadJSONL(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// loadJSONL wraps the line-delimited records into a single JSON array so
// the dataframe reader can ingest them.
func loadJSONL(f *os.File) (*Table, error) {
	var sb strings.Builder
	sb.WriteByte('[')
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		sb.WriteString(line)
		first = false
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	sb.WriteByte(']')
	df := dataframe.ReadJSON(strings.NewReader(sb.String()))
	if df.Err != nil {
		return nil, fmt.Errorf("read jsonl: %w", df.Err)
	}
	return &Table{df: df}, nil
}

// NewTable builds a table from parallel text and label slices.
func NewTable(texts []string, labels []int64) *Table {
	labelStrs := make([]string, len(labels))
	for i, l := range labels {
		labelStrs[i] = strconv.FormatInt(l, 10)
	}
	df := dataframe.New(
		series.New(texts, series.String, "text"),
		series.New(labelStrs, series.Int, "label"),
	)
	return &Table{df: df}
}

func (t *Table) NRows() int { return t.df.Nrow() }

func (t *Table) HasColumn(name string) bool {
	for _, n := range t.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Texts returns the named column as raw strings.
func (t *Table) Texts(column string) ([]string, error) {
	if !t.HasColumn(column) {
		return nil, fmt.Errorf("text column %q not found (have %v)", column, t.df.Names())
	}
	return t.df.Col(column).Records(), nil
}

// Labels returns the named column as int64 class ids. String labels are
// mapped to ids by sorted order so the mapping is deterministic across
// runs; the mapping is returned alongside the ids (nil when labels were
// already numeric).
func (t *Table) Labels(column string) ([]int64, map[string]int64, error) {
	if !t.HasColumn(column) {
		return nil, nil, fmt.Errorf("label column %q not found (have %v)", column, t.df.Names())
	}
	records := t.df.Col(column).Records()
	labels := make([]int64, len(records))
	numeric := true
	for i, r := range records {
		v, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64)
		if err != nil {
			numeric = false
			break
		}
		labels[i] = v
	}
	if numeric {
		return labels, nil, nil
	}

	uniq := make(map[string]struct{}, 8)
	for _, r := range records {
		uniq[strings.TrimSpace(r)] = struct{}{}
	}
	names := make([]string, 0, len(uniq))
	for n := range uniq {
		names = append(names, n)
	}
	sort.Strings(names)
	mapping := make(map[string]int64, len(names))
	for i, n := range names {
		mapping[n] = int64(i)
	}
	for i, r := range records {
		labels[i] = mapping[strings.TrimSpace(r)]
	}
	return labels, mapping, nil
}

// Subset returns a new table containing only the given row indices, in order.
func (t *Table) Subset(indices []int) (*Table, error) {
	sub := t.df.Subset(indices)
	if sub.Err != nil {
		return nil, fmt.Errorf("subset: %w", sub.Err)
	}
	return &Table{df: sub}, nil
}

// SaveCSV writes the table back out, used by the preprocessing CLI path.
func (t *Table) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()
	if err := t.df.WriteCSV(f); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
