package runstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hupe1980/proposalmesh/core"
)

// PostgresStore persists runs as JSONB payloads keyed by run id. The schema
// is created lazily on first use.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

var _ core.RunStore = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool against the given DSN and
// verifies connectivity.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("runstore: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewFromEnv returns a PostgresStore when PROPOSALMESH_PG_DSN is set and
// reachable, and falls back to an InMemoryStore otherwise.
func NewFromEnv(optFns ...func(o *InMemoryOptions)) core.RunStore {
	if dsn := strings.TrimSpace(os.Getenv("PROPOSALMESH_PG_DSN")); dsn != "" {
		if s, err := NewPostgresStore(dsn); err == nil {
			return s
		}
	}
	return NewInMemoryStore(optFns...)
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS pipeline_runs (
  run_id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs (status);
`)
	})
	return s.schemaErr
}

// Create implements core.RunStore.
func (s *PostgresStore) Create(run *core.PipelineRun) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("runstore: ensure schema: %w", err)
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("runstore: encode run %s: %w", run.ID, err)
	}

	res, err := s.db.Exec(`
INSERT INTO pipeline_runs (run_id, status, payload, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (run_id) DO NOTHING`,
		run.ID, string(run.Status), payload, run.CreatedAt, completedAt(run))
	if err != nil {
		return fmt.Errorf("runstore: insert run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("runstore: run %s already exists", run.ID)
	}
	return nil
}

// Get implements core.RunStore.
func (s *PostgresStore) Get(runID string) (*core.PipelineRun, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("runstore: ensure schema: %w", err)
	}

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM pipeline_runs WHERE run_id = $1`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("runstore: query run %s: %w", runID, err)
	}

	run := &core.PipelineRun{}
	if err := json.Unmarshal(payload, run); err != nil {
		return nil, fmt.Errorf("runstore: decode run %s: %w", runID, err)
	}
	return run, nil
}

// Update implements core.RunStore.
func (s *PostgresStore) Update(run *core.PipelineRun) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("runstore: ensure schema: %w", err)
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("runstore: encode run %s: %w", run.ID, err)
	}

	_, err = s.db.Exec(`
INSERT INTO pipeline_runs (run_id, status, payload, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (run_id)
DO UPDATE SET status=EXCLUDED.status,
  payload=EXCLUDED.payload,
  completed_at=EXCLUDED.completed_at`,
		run.ID, string(run.Status), payload, run.CreatedAt, completedAt(run))
	if err != nil {
		return fmt.Errorf("runstore: upsert run %s: %w", run.ID, err)
	}
	return nil
}

// Delete implements core.RunStore.
func (s *PostgresStore) Delete(runID string) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("runstore: ensure schema: %w", err)
	}

	res, err := s.db.Exec(`DELETE FROM pipeline_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("runstore: delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

func completedAt(run *core.PipelineRun) *time.Time {
	if run.CompletedAt == nil {
		return nil
	}
	ts := *run.CompletedAt
	return &ts
}
