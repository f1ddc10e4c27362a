package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
)

const (
	weightsFile  = "model_weights.json"
	configFile   = "model_config.json"
	metadataFile = "metadata.json"
	vocabFile    = "vocab.txt"
)

// Save writes a checkpoint directory: weights, architecture config,
// run metadata, and a copy of the tokenizer vocabulary. Each file is
// written to a temp path and renamed so a crash never leaves a torn file.
func Save(dir string, clf Classifier, vocabPath string, metadata any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	weights := make(map[string][]float64)
	shapes := make(map[string][2]int)
	for _, p := range clf.Params() {
		r, c := p.W.Dims()
		flat := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				flat = append(flat, p.W.At(i, j))
			}
		}
		weights[p.Name] = flat
		shapes[p.Name] = [2]int{r, c}
	}
	payload := struct {
		Shapes  map[string][2]int    `json:"shapes"`
		Weights map[string][]float64 `json:"weights"`
	}{Shapes: shapes, Weights: weights}

	if err := writeJSONAtomic(filepath.Join(dir, weightsFile), payload); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(dir, configFile), clf.Config()); err != nil {
		return fmt.Errorf("write model config: %w", err)
	}
	if metadata != nil {
		if err := writeJSONAtomic(filepath.Join(dir, metadataFile), metadata); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}
	if vocabPath != "" {
		if err := copyFile(vocabPath, filepath.Join(dir, vocabFile)); err != nil {
			return fmt.Errorf("copy vocab: %w", err)
		}
	}
	return nil
}

// Load rebuilds a classifier from a checkpoint directory. The encoder is
// constructed from the saved config unless a non-nil override is given.
func Load(dir string, enc encoder.Encoder) (Classifier, error) {
	cfgBytes, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	if enc == nil {
		enc = encoder.NewEncoder(cfg.EncoderProvider, cfg.HiddenSize, cfg.EncoderModelPath)
	}
	// Seed is irrelevant here: every weight is overwritten below and
	// dropout is inactive at inference.
	clf, err := New(cfg, enc, 0)
	if err != nil {
		return nil, err
	}

	wBytes, err := os.ReadFile(filepath.Join(dir, weightsFile))
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var payload struct {
		Shapes  map[string][2]int    `json:"shapes"`
		Weights map[string][]float64 `json:"weights"`
	}
	if err := json.Unmarshal(wBytes, &payload); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}

	for _, p := range clf.Params() {
		flat, ok := payload.Weights[p.Name]
		if !ok {
			return nil, fmt.Errorf("checkpoint is missing weights for %q", p.Name)
		}
		r, c := p.W.Dims()
		if shape, ok := payload.Shapes[p.Name]; ok && (shape[0] != r || shape[1] != c) {
			return nil, fmt.Errorf("weights for %q have shape %dx%d, want %dx%d",
				p.Name, shape[0], shape[1], r, c)
		}
		if len(flat) != r*c {
			return nil, fmt.Errorf("weights for %q have %d values, want %d", p.Name, len(flat), r*c)
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				p.W.Set(i, j, flat[i*c+j])
			}
		}
	}
	return clf, nil
}

// VocabPath returns the vocabulary file inside a checkpoint directory.
func VocabPath(dir string) string { return filepath.Join(dir, vocabFile) }

// ReadMetadata unmarshals metadata.json from a checkpoint into out.
func ReadMetadata(dir string, out any) error {
	b, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse metadata: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
