package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/eval"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/training"
)

func testStore(t *testing.T) *RunStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)

	id, err := s.CreateRun("base", `{"learning_rate":2e-5}`)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "base", run.Architecture)
	assert.Equal(t, "running", run.Status)

	require.NoError(t, s.FinishRun(id, "completed"))
	run, err = s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
}

func TestFinishUnknownRun(t *testing.T) {
	s := testStore(t)
	err := s.FinishRun(uuid.New(), "completed")
	assert.Error(t, err)
}

func TestRecordHistoryAndMetrics(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateRun("attention", "{}")
	require.NoError(t, err)

	h := &training.History{
		Epochs: []training.EpochStats{
			{TrainLoss: 0.9, ValLoss: 0.8, TrainAccuracy: 0.6, ValAccuracy: 0.65, LearningRate: 1e-5},
			{TrainLoss: 0.5, ValLoss: 0.45, TrainAccuracy: 0.8, ValAccuracy: 0.82, LearningRate: 5e-6},
		},
		BestValLoss: 0.45,
	}
	require.NoError(t, s.RecordHistory(id, h))

	metrics := map[string]float64{"accuracy": 0.82, "f1": 0.8, "auc": 0.9}
	require.NoError(t, s.RecordMetrics(id, "test", metrics))

	got, err := s.Metrics(id, "test")
	require.NoError(t, err)
	assert.Equal(t, metrics, got)

	empty, err := s.Metrics(id, "val")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordPredictions(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateRun("base", "{}")
	require.NoError(t, err)

	preds := []eval.Prediction{
		{Text: "some text", True: 1, Pred: 1, Probs: []float64{0.2, 0.8}},
		{Text: "other text", True: 0, Pred: 1, Probs: []float64{0.4, 0.6}},
	}
	require.NoError(t, s.RecordPredictions(id, preds))

	// Idempotent on re-record.
	require.NoError(t, s.RecordPredictions(id, preds))
}

func TestBestRunOrdersByMetric(t *testing.T) {
	s := testStore(t)

	a, err := s.CreateRun("base", "{}")
	require.NoError(t, err)
	b, err := s.CreateRun("attention", "{}")
	require.NoError(t, err)

	require.NoError(t, s.RecordMetrics(a, "test", map[string]float64{"f1": 0.7}))
	require.NoError(t, s.RecordMetrics(b, "test", map[string]float64{"f1": 0.9}))

	best, value, err := s.BestRun("test", "f1")
	require.NoError(t, err)
	assert.Equal(t, b, best)
	assert.InDelta(t, 0.9, value, 1e-12)

	_, _, err = s.BestRun("test", "nonexistent")
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateRun("base", "{}")
	require.NoError(t, err)
	_, err = s.CreateRun("multitask", "{}")
	require.NoError(t, err)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
