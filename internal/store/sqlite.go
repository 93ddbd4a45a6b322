package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rcl-research/rcl/internal/model"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Ensure SQLiteStore implements model.RunStore.
var _ model.RunStore = (*SQLiteStore)(nil)

// SQLiteStore keeps training runs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// runs table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		model_name    TEXT NOT NULL,
		handle        TEXT NOT NULL DEFAULT '',
		num_labels    INTEGER NOT NULL,
		epochs        INTEGER NOT NULL,
		class_weights TEXT NOT NULL,
		history       TEXT NOT NULL,
		created_at    INTEGER NOT NULL -- unix nanoseconds
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRun inserts or replaces run. An empty ID is filled with a new UUID and
// a zero CreatedAt with the current time; both are written back to run.
func (s *SQLiteStore) SaveRun(run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	weights, err := encodeWeights(run.ClassWeights)
	if err != nil {
		return fmt.Errorf("encoding class weights for run %s: %w", run.ID, err)
	}
	history, err := json.Marshal(run.History)
	if err != nil {
		return fmt.Errorf("encoding history for run %s: %w", run.ID, err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO runs
		(id, model_name, handle, num_labels, epochs, class_weights, history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelName, run.Handle, run.NumLabels, run.Epochs, weights, string(history), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads the run with the given ID.
func (s *SQLiteStore) GetRun(id string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT id, model_name, handle, num_labels, epochs, class_weights, history, created_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all.
func (s *SQLiteStore) ListRuns(limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT id, model_name, handle, num_labels, epochs, class_weights, history, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.Run, error) {
	var (
		run       model.Run
		weights   string
		history   string
		createdAt int64
	)
	if err := sc.Scan(&run.ID, &run.ModelName, &run.Handle, &run.NumLabels, &run.Epochs, &weights, &history, &createdAt); err != nil {
		return nil, err
	}
	cw, err := decodeWeights(weights)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &run.History); err != nil {
		return nil, err
	}
	run.ClassWeights = cw
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	return &run, nil
}

// Class weights are stored as a JSON object keyed by the decimal label.
func encodeWeights(w map[int]float64) (string, error) {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[strconv.Itoa(k)] = v
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func decodeWeights(s string) (map[int]float64, error) {
	var raw map[string]float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode class weights: %w", err)
	}
	out := make(map[int]float64, len(raw))
	for k, v := range raw {
		label, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode class weights: label %q: %w", k, err)
		}
		out[label] = v
	}
	return out, nil
}
