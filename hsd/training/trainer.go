package training

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/rs/zerolog"

	"gonum.org/v1/gonum/mat"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/dataset"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/model"
)

// ErrLoaderExhausted indicates a loader ran out of batches before its declared count
var ErrLoaderExhausted = fmt.Errorf("data loader exhausted before declared batch count")

// Config holds trainer hyperparameters.
type Config struct {
	MaxEpochs     int
	LearningRate  float64
	WeightDecay   float64
	WarmupSteps   int
	MaxGradNorm   float64
	Patience      int
	MinDelta      float64
	AuxLossWeight float64
	CheckpointDir string
	VocabPath     string
	// RunConfig is persisted verbatim into checkpoint metadata so a
	// saved model carries the configuration that produced it.
	RunConfig any
	// CoarseMap derives the coarse target from a fine label for the
	// hierarchical variant. Nil defaults to label > 0 -> 1.
	CoarseMap func(int64) int64
}

// EpochStats is one epoch's history row.
type EpochStats struct {
	TrainLoss     float64 `json:"train_loss"`
	ValLoss       float64 `json:"val_loss"`
	TrainAccuracy float64 `json:"train_accuracy"`
	ValAccuracy   float64 `json:"val_accuracy"`
	LearningRate  float64 `json:"learning_rate"`
}

// History summarizes a full training run.
type History struct {
	Epochs       []EpochStats `json:"epochs"`
	BestValLoss  float64      `json:"best_val_loss"`
	StoppedEarly bool         `json:"stopped_early"`
}

// Trainer runs the optimization loop with warmup-linear LR scheduling,
// gradient clipping, early stopping and checkpoint-on-improvement.
type Trainer struct {
	clf     model.Classifier
	loss    Loss
	auxLoss Loss
	cfg     Config
	log     zerolog.Logger
}

func NewTrainer(clf model.Classifier, loss Loss, cfg Config, log zerolog.Logger) *Trainer {
	if cfg.MaxEpochs <= 0 {
		cfg.MaxEpochs = 1
	}
	if cfg.CoarseMap == nil {
		cfg.CoarseMap = func(l int64) int64 {
			if l > 0 {
				return 1
			}
			return 0
		}
	}
	return &Trainer{
		clf:  clf,
		loss: loss,
		// Auxiliary targets are frequently imbalanced too, but their
		// distribution is unknown here; plain cross entropy is used.
		auxLoss: &WeightedCrossEntropy{},
		cfg:     cfg,
		log:     log,
	}
}

// Train runs up to MaxEpochs epochs and returns the history. The model is
// left holding its best-validation weights.
func (t *Trainer) Train(ctx context.Context, train, val *dataset.BatchLoader) (*History, error) {
	totalSteps := t.cfg.MaxEpochs * train.NumBatches()
	sched := &WarmupLinearSchedule{
		WarmupSteps: t.cfg.WarmupSteps,
		TotalSteps:  totalSteps,
	}
	opt := NewAdamW(t.clf.Params(), t.cfg.LearningRate, t.cfg.WeightDecay)
	stopper := NewEarlyStopper(t.cfg.Patience, t.cfg.MinDelta)

	history := &History{}
	globalStep := 0
	for epoch := 0; epoch < t.cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}
		trainLoss, trainAcc, steps, err := t.trainEpoch(ctx, train, opt, sched, globalStep)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch+1, err)
		}
		globalStep += steps

		valLoss, valAcc, err := t.evalEpoch(ctx, val)
		if err != nil {
			return history, fmt.Errorf("epoch %d validation: %w", epoch+1, err)
		}

		lr := t.cfg.LearningRate * sched.Multiplier(min(globalStep, totalSteps-1))
		history.Epochs = append(history.Epochs, EpochStats{
			TrainLoss:     trainLoss,
			ValLoss:       valLoss,
			TrainAccuracy: trainAcc,
			ValAccuracy:   valAcc,
			LearningRate:  lr,
		})

		stop := stopper.Observe(valLoss, t.clf.Params())
		history.BestValLoss = stopper.BestLoss()

		t.log.Info().
			Int("epoch", epoch+1).
			Float64("train_loss", trainLoss).Float64("train_acc", trainAcc).
			Float64("val_loss", valLoss).Float64("val_acc", valAcc).
			Float64("lr", lr).Bool("improved", stopper.Improved()).
			Msg("epoch complete")

		if stopper.Improved() && t.cfg.CheckpointDir != "" {
			meta := map[string]any{
				"history":       history,
				"best_val_loss": stopper.BestLoss(),
				"epoch":         epoch + 1,
			}
			if t.cfg.RunConfig != nil {
				meta["config"] = t.cfg.RunConfig
			}
			if err := model.Save(t.cfg.CheckpointDir, t.clf, t.cfg.VocabPath, meta); err != nil {
				// A failed checkpoint must not abort training.
				t.log.Warn().Err(err).Str("dir", t.cfg.CheckpointDir).
					Msg("checkpoint save failed")
			}
		}
		if stop {
			history.StoppedEarly = true
			t.log.Info().Int("epoch", epoch+1).Msg("early stopping triggered")
			break
		}
	}
	stopper.Restore(t.clf.Params())
	return history, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, loader *dataset.BatchLoader, opt *AdamW, sched *WarmupLinearSchedule, globalStep int) (avgLoss, accuracy float64, steps int, err error) {
	loader.Reset()
	declared := loader.NumBatches()
	var totalLoss float64
	var correct, seen, lossBatches int
	for b := 0; ; b++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, steps, err
		}
		batch, err := loader.Next()
		if err == io.EOF {
			if b < declared {
				return 0, 0, steps, fmt.Errorf("%w: got %d of %d", ErrLoaderExhausted, b, declared)
			}
			break
		}
		if err != nil {
			return 0, 0, steps, err
		}

		fwd, err := t.clf.Forward(ctx, batch.InputIDs, batch.AttentionMasks, true)
		if err != nil {
			return 0, 0, steps, err
		}
		loss, dLogits, err := t.loss.Compute(fwd.Logits, batch.Labels)
		if err != nil {
			return 0, 0, steps, err
		}

		var dAux *mat.Dense
		if fwd.AuxLogits != nil && t.cfg.AuxLossWeight > 0 {
			auxTargets := t.auxTargets(batch)
			if auxTargets != nil {
				auxLoss, dA, err := t.auxLoss.Compute(fwd.AuxLogits, auxTargets)
				if err != nil {
					return 0, 0, steps, err
				}
				loss += t.cfg.AuxLossWeight * auxLoss
				dA.Scale(t.cfg.AuxLossWeight, dA)
				dAux = dA
			}
		}

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			t.log.Warn().Int("batch", b).Float64("loss", loss).
				Msg("skipping non-finite loss")
			continue
		}

		opt.ZeroGrad()
		fwd.Backward(dLogits, dAux)
		model.ClipGradNorm(t.clf.Params(), t.cfg.MaxGradNorm)
		opt.Step(sched.Multiplier(globalStep + steps))
		steps++

		totalLoss += loss
		lossBatches++
		correct += countCorrect(fwd.Logits, batch.Labels)
		seen += len(batch.Labels)
	}
	if lossBatches == 0 {
		return 0, 0, steps, fmt.Errorf("no finite training batches in epoch")
	}
	return totalLoss / float64(lossBatches), float64(correct) / float64(seen), steps, nil
}

func (t *Trainer) evalEpoch(ctx context.Context, loader *dataset.BatchLoader) (avgLoss, accuracy float64, err error) {
	loader.Reset()
	var totalLoss float64
	var correct, seen, batches int
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		batch, err := loader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		fwd, err := t.clf.Forward(ctx, batch.InputIDs, batch.AttentionMasks, false)
		if err != nil {
			return 0, 0, err
		}
		loss, _, err := t.loss.Compute(fwd.Logits, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		totalLoss += loss
		batches++
		correct += countCorrect(fwd.Logits, batch.Labels)
		seen += len(batch.Labels)
	}
	if batches == 0 {
		return 0, 0, fmt.Errorf("validation loader produced no batches")
	}
	return totalLoss / float64(batches), float64(correct) / float64(seen), nil
}

// auxTargets picks the auxiliary targets for the current batch: explicit
// aux labels when present, otherwise coarse labels derived from the main
// ones (hierarchical case).
func (t *Trainer) auxTargets(batch *dataset.Batch) []int64 {
	if len(batch.AuxLabels) == len(batch.Labels) && len(batch.AuxLabels) > 0 {
		return batch.AuxLabels
	}
	if t.clf.Config().Architecture == model.ArchHierarchical {
		coarse := make([]int64, len(batch.Labels))
		for i, l := range batch.Labels {
			coarse[i] = t.cfg.CoarseMap(l)
		}
		return coarse
	}
	return nil
}

func countCorrect(logits *mat.Dense, labels []int64) int {
	rows, cols := logits.Dims()
	var correct int
	for i := 0; i < rows && i < len(labels); i++ {
		best, bestV := 0, math.Inf(-1)
		for j := 0; j < cols; j++ {
			if v := logits.At(i, j); v > bestV {
				best, bestV = j, v
			}
		}
		if int64(best) == labels[i] {
			correct++
		}
	}
	return correct
}
