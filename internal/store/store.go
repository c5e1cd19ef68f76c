// Package store persists compile requests in SQLite so status lookups,
// artifact naming, and housekeeping survive process restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentify/agentify/internal/spec"
)

// Request is one recorded compile request.
type Request struct {
	ID        int64
	AgentID   string
	AgentName string
	Target    spec.BuildTarget
	Platform  spec.Platform
	Version   string
	Method    string
	JobID     string
	Status    string
	CreatedAt time.Time
}

// Store is a SQLite-backed record of compile requests.
// Use ":memory:" for tests, a file path for persistent storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS build_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		build_target TEXT NOT NULL,
		platform TEXT NOT NULL,
		version TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		job_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_id ON build_requests(job_id);
	CREATE INDEX IF NOT EXISTS idx_created_at ON build_requests(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRequest records a normalized compile request and returns its row id.
// The agent name is stored as its display slug, not the canonical URN, so
// lookups feed directly into artifact filenames.
func (s *Store) SaveRequest(ctx context.Context, bs *spec.BuildSpec) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO build_requests (agent_id, agent_name, build_target, platform, version, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		bs.AgentID, bs.DisplayName(), string(bs.BuildTarget), string(bs.Platform), bs.Version, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert build request: %w", err)
	}
	return res.LastInsertId()
}

// AttachJob links a dispatched job id and compilation method to a request.
func (s *Store) AttachJob(ctx context.Context, id int64, jobID, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE build_requests SET job_id = ?, method = ? WHERE id = ?",
		jobID, method, id,
	)
	if err != nil {
		return fmt.Errorf("attach job: %w", err)
	}
	return nil
}

// UpdateStatus records the latest observed job status for a request.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status spec.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE build_requests SET status = ? WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// AgentNameForJob resolves the display name that owns a job id. A miss is
// not an error; callers fall back to a generic name.
func (s *Store) AgentNameForJob(ctx context.Context, jobID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT agent_name FROM build_requests WHERE job_id = ? ORDER BY id DESC LIMIT 1",
		jobID,
	).Scan(&name)
	if err != nil {
		return "", false
	}
	return name, true
}

// ListRecent returns the newest requests, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, agent_id, agent_name, build_target, platform, version, method, job_id, status, created_at FROM build_requests ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var r Request
		var target, platform string
		var createdUnix int64
		if err := rows.Scan(&r.ID, &r.AgentID, &r.AgentName, &target, &platform, &r.Version, &r.Method, &r.JobID, &r.Status, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		r.Target = spec.BuildTarget(target)
		r.Platform = spec.Platform(platform)
		r.CreatedAt = time.Unix(createdUnix, 0)
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return requests, nil
}

// Prune deletes requests created before the cutoff and reports how many
// rows went away.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM build_requests WHERE created_at < ?",
		olderThan.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune requests: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
