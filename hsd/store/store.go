package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/moeinghaeini/HateSpeechDetection/hsd/eval"
	"github.com/moeinghaeini/HateSpeechDetection/hsd/training"
)

// RunStore persists training runs, their epoch history, evaluation metrics
// and predictions in a libsql database so experiments can be compared
// across invocations.
type RunStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// Run is one training invocation.
type Run struct {
	ID           uuid.UUID
	Architecture string
	Config       string
	Status       string
	StartedAt    time.Time
}

// Open connects to the database at dsn (e.g. "file:runs.db") and creates
// the schema when missing.
func Open(dsn string, log zerolog.Logger) (*RunStore, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	s := &RunStore{db: db, log: log.With().Str("component", "runstore").Logger()}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RunStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY UNIQUE,
			architecture TEXT NOT NULL,
			config TEXT,
			status TEXT NOT NULL DEFAULT 'running',
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS epochs (
			run_id TEXT NOT NULL REFERENCES runs(id),
			epoch INTEGER NOT NULL,
			train_loss REAL,
			val_loss REAL,
			train_accuracy REAL,
			val_accuracy REAL,
			learning_rate REAL,
			PRIMARY KEY (run_id, epoch)
		)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL REFERENCES runs(id),
			split TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, split, name)
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			run_id TEXT NOT NULL REFERENCES runs(id),
			row INTEGER NOT NULL,
			text TEXT,
			true_label INTEGER,
			predicted_label INTEGER,
			probabilities TEXT,
			PRIMARY KEY (run_id, row)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init run store schema: %w", err)
		}
	}
	return nil
}

func (s *RunStore) Close() error { return s.db.Close() }

// CreateRun registers a new run and returns its id.
func (s *RunStore) CreateRun(architecture, configJSON string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(
		"INSERT INTO runs (id, architecture, config) VALUES (?, ?, ?)",
		id.String(), architecture, configJSON)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create run: %w", err)
	}
	s.log.Debug().Str("run_id", id.String()).Str("architecture", architecture).Msg("run created")
	return id, nil
}

// FinishRun marks a run's terminal status ("completed", "failed",
// "stopped_early").
func (s *RunStore) FinishRun(id uuid.UUID, status string) error {
	res, err := s.db.Exec("UPDATE runs SET status = ? WHERE id = ?", status, id.String())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("finish run: no run with id %s", id)
	}
	return nil
}

// RecordHistory stores every epoch row of a training history.
func (s *RunStore) RecordHistory(id uuid.UUID, h *training.History) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	defer tx.Rollback()
	for i, e := range h.Epochs {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO epochs
			 (run_id, epoch, train_loss, val_loss, train_accuracy, val_accuracy, learning_rate)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id.String(), i+1, e.TrainLoss, e.ValLoss, e.TrainAccuracy, e.ValAccuracy, e.LearningRate)
		if err != nil {
			return fmt.Errorf("record epoch %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// RecordMetrics stores a metric map for a named split.
func (s *RunStore) RecordMetrics(id uuid.UUID, split string, metrics map[string]float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record metrics: %w", err)
	}
	defer tx.Rollback()
	for name, value := range metrics {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO metrics (run_id, split, name, value) VALUES (?, ?, ?, ?)",
			id.String(), split, name, value)
		if err != nil {
			return fmt.Errorf("record metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// RecordPredictions stores per-row predictions for later error analysis.
func (s *RunStore) RecordPredictions(id uuid.UUID, preds []eval.Prediction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record predictions: %w", err)
	}
	defer tx.Rollback()
	for i, p := range preds {
		probs, err := json.Marshal(p.Probs)
		if err != nil {
			return fmt.Errorf("marshal probabilities: %w", err)
		}
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO predictions
			 (run_id, row, text, true_label, predicted_label, probabilities)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), i, p.Text, p.True, p.Pred, string(probs))
		if err != nil {
			return fmt.Errorf("record prediction %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetRun fetches a run by id.
func (s *RunStore) GetRun(id uuid.UUID) (*Run, error) {
	row := s.db.QueryRow(
		"SELECT id, architecture, config, status, started_at FROM runs WHERE id = ?", id.String())
	return scanRun(row)
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(
		"SELECT id, architecture, config, status, started_at FROM runs ORDER BY started_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Metrics returns a run's stored metrics for a split.
func (s *RunStore) Metrics(id uuid.UUID, split string) (map[string]float64, error) {
	rows, err := s.db.Query(
		"SELECT name, value FROM metrics WHERE run_id = ? AND split = ?", id.String(), split)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// BestRun returns the run id with the highest value of the named metric on
// the given split.
func (s *RunStore) BestRun(split, metric string) (uuid.UUID, float64, error) {
	row := s.db.QueryRow(
		`SELECT run_id, value FROM metrics
		 WHERE split = ? AND name = ? ORDER BY value DESC LIMIT 1`, split, metric)
	var idStr string
	var value float64
	if err := row.Scan(&idStr, &value); err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, 0, fmt.Errorf("no runs recorded %s/%s", split, metric)
		}
		return uuid.Nil, 0, fmt.Errorf("best run: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("parse run id: %w", err)
	}
	return id, value, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (*Run, error) {
	var run Run
	var idStr string
	var started sql.NullTime
	if err := r.Scan(&idStr, &run.Architecture, &run.Config, &run.Status, &started); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = id
	if started.Valid {
		run.StartedAt = started.Time
	}
	return &run, nil
}
