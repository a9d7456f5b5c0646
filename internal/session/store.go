// Package session persists run transcripts so they can be inspected or
// replayed after the fact.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"miniswe/internal/models"
)

// Run statuses.
const (
	StatusSubmitted = "submitted"
	StatusLimits    = "limits_exceeded"
	StatusError     = "error"
)

// Run is one recorded agent run.
type Run struct {
	ID        string
	Task      string
	Model     string
	Status    string
	Steps     int
	Cost      float64
	CreatedAt time.Time
	Messages  []models.ChatMessage
}

// Meta is a lightweight row for listings, without the transcript.
type Meta struct {
	ID        string
	Task      string
	Model     string
	Status    string
	Steps     int
	Cost      float64
	CreatedAt time.Time
}

// Store persists runs in a sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates the database (and schema) if needed.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		task       TEXT NOT NULL,
		model      TEXT NOT NULL,
		status     TEXT NOT NULL,
		steps      INTEGER NOT NULL,
		cost       REAL NOT NULL,
		created_at INTEGER NOT NULL,
		messages   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Save inserts a run. An empty ID is assigned one.
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	messages, err := json.Marshal(run.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, task, model, status, steps, cost, created_at, messages)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, run.Model, run.Status, run.Steps, run.Cost, run.CreatedAt.Unix(), string(messages))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Load retrieves one run with its full transcript.
func (s *Store) Load(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, task, model, status, steps, cost, created_at, messages
		 FROM runs WHERE run_id = ?`, id)

	var run Run
	var createdAt int64
	var messages string
	if err := row.Scan(&run.ID, &run.Task, &run.Model, &run.Status, &run.Steps, &run.Cost, &createdAt, &messages); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	run.CreatedAt = time.Unix(createdAt, 0)
	if err := json.Unmarshal([]byte(messages), &run.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &run, nil
}

// List returns run metadata, newest first.
func (s *Store) List(ctx context.Context) ([]Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, task, model, status, steps, cost, created_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Task, &m.Model, &m.Status, &m.Steps, &m.Cost, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}
