package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/logsift/config"
)

// RunRecord is one pipeline run persisted to the run-history store.
type RunRecord struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	Stopped      string          `json:"stopped,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	LogCount     int             `json:"log_count"`
	ClusterCount int             `json:"cluster_count"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	Plan         json.RawMessage `json:"plan,omitempty"`
	Usage        json.RawMessage `json:"usage,omitempty"`
	Errors       json.RawMessage `json:"errors,omitempty"`
}

// RunStore keeps run history in postgres so past triage sessions can be
// compared across days. Opening it is optional; the pipeline runs fine
// without one.
type RunStore struct {
	db *sql.DB
}

// NewRunStore connects to postgres and ensures the schema exists.
func NewRunStore(cfg config.PostgresConfig) (*RunStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	s := &RunStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RunStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id UUID PRIMARY KEY,
    mode TEXT NOT NULL,
    stopped TEXT,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    log_count INTEGER NOT NULL DEFAULT 0,
    cluster_count INTEGER NOT NULL DEFAULT 0,
    summary JSONB,
    plan JSONB,
    usage JSONB,
    errors JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC);
`)
	return err
}

// SaveRun inserts one run record, assigning an id when missing.
func (s *RunStore) SaveRun(ctx context.Context, rec RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, mode, stopped, started_at, finished_at, log_count, cluster_count, summary, plan, usage, errors)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Mode, rec.Stopped, rec.StartedAt, rec.FinishedAt,
		rec.LogCount, rec.ClusterCount,
		nullableJSON(rec.Summary), nullableJSON(rec.Plan), nullableJSON(rec.Usage), nullableJSON(rec.Errors))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return rec.ID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, mode, COALESCE(stopped, ''), started_at, finished_at, log_count, cluster_count,
       COALESCE(summary, 'null'), COALESCE(plan, 'null'), COALESCE(usage, 'null'), COALESCE(errors, 'null')
FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var summary, planDoc, usage, errList []byte
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Stopped, &rec.StartedAt, &rec.FinishedAt,
			&rec.LogCount, &rec.ClusterCount, &summary, &planDoc, &usage, &errList); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Summary = summary
		rec.Plan = planDoc
		rec.Usage = usage
		rec.Errors = errList
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
