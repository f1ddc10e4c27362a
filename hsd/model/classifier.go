package model

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/encoder"
)

// Architecture names accepted by New.
const (
	ArchBase         = "base"
	ArchMultiTask    = "multitask"
	ArchHierarchical = "hierarchical"
	ArchAttention    = "attention"
)

// ErrUnknownArchitecture indicates an unrecognized classifier variant
var ErrUnknownArchitecture = fmt.Errorf("unknown classifier architecture")

// Config describes a classifier instance. It round-trips through
// model_config.json so checkpoints can be reloaded without the original
// run configuration.
type Config struct {
	Architecture     string  `json:"architecture"`
	NumLabels        int     `json:"num_labels"`
	NumAuxLabels     int     `json:"num_auxiliary_labels,omitempty"`
	NumCoarseLabels  int     `json:"num_coarse_labels,omitempty"`
	HiddenSize       int     `json:"hidden_size"`
	DropoutRate      float64 `json:"dropout_rate"`
	AttentionHeads   int     `json:"attention_heads,omitempty"`
	MaxLength        int     `json:"max_length"`
	EncoderProvider  string  `json:"encoder_provider"`
	EncoderModelPath string  `json:"encoder_model_path,omitempty"`
}

func (c *Config) validate() error {
	if c.NumLabels < 2 {
		return fmt.Errorf("num_labels must be at least 2, got %d", c.NumLabels)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("hidden_size must be positive, got %d", c.HiddenSize)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("dropout_rate must be in [0, 1), got %g", c.DropoutRate)
	}
	return nil
}

// Forwarded is the result of one forward pass. Backward pushes loss
// gradients w.r.t. the logits into the classifier's parameter gradients;
// it must be called at most once per forward.
type Forwarded struct {
	// Logits is [batch x numLabels].
	Logits *mat.Dense
	// AuxLogits is [batch x numAuxLabels] for the multi-task variant,
	// or [batch x numCoarseLabels] for the hierarchical one. Nil otherwise.
	AuxLogits *mat.Dense
	// Attention holds per-row pooled attention weights [batch][heads*seq]
	// for the attention variant. Nil otherwise.
	Attention [][]float64
	// Backward accumulates gradients. dAuxLogits may be nil when the
	// variant has no auxiliary output or the aux loss is disabled.
	Backward func(dLogits, dAuxLogits *mat.Dense)
}

// Classifier is a trainable head over a frozen text encoder.
type Classifier interface {
	Forward(ctx context.Context, inputIDs, attentionMasks [][]int64, train bool) (*Forwarded, error)
	// Embeddings returns the pooled representation the variant feeds its
	// head, without dropout, for introspection and ensembling.
	Embeddings(ctx context.Context, inputIDs, attentionMasks [][]int64) (*mat.Dense, error)
	Params() []*Param
	Config() Config
}

// New constructs a classifier variant over the given encoder. The seed
// fixes both weight initialization and dropout masks.
func New(cfg Config, enc encoder.Encoder, seed int64) (Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if enc.HiddenSize() != cfg.HiddenSize {
		return nil, fmt.Errorf("encoder hidden size %d does not match config %d", enc.HiddenSize(), cfg.HiddenSize)
	}
	rng := rand.New(rand.NewSource(seed))
	switch strings.ToLower(strings.TrimSpace(cfg.Architecture)) {
	case ArchBase, "":
		return newBaseClassifier(cfg, enc, rng), nil
	case ArchMultiTask, "multi_task", "multi-task":
		if cfg.NumAuxLabels < 2 {
			return nil, fmt.Errorf("multitask requires num_auxiliary_labels >= 2, got %d", cfg.NumAuxLabels)
		}
		return newMultiTaskClassifier(cfg, enc, rng), nil
	case ArchHierarchical:
		if cfg.NumCoarseLabels < 2 {
			cfg.NumCoarseLabels = 2
		}
		return newHierarchicalClassifier(cfg, enc, rng), nil
	case ArchAttention, "attention_pooled":
		if cfg.AttentionHeads <= 0 {
			cfg.AttentionHeads = 4
		}
		return newAttentionClassifier(cfg, enc, rng), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchitecture, cfg.Architecture)
	}
}

// pooledMatrix packs the encoder's pooled vectors into a dense batch matrix.
func pooledMatrix(pooled [][]float64, hidden int) *mat.Dense {
	x := mat.NewDense(len(pooled), hidden, nil)
	for i, row := range pooled {
		x.SetRow(i, row)
	}
	return x
}

// encoderEmbeddings is the shared Embeddings implementation for variants
// that classify the encoder's own pooled vector.
func encoderEmbeddings(ctx context.Context, enc encoder.Encoder, inputIDs, attentionMasks [][]int64, hidden int) (*mat.Dense, error) {
	pooled, _, err := enc.EncodeBatch(ctx, inputIDs, attentionMasks)
	if err != nil {
		return nil, err
	}
	return pooledMatrix(pooled, hidden), nil
}
