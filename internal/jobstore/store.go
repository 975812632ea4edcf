// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jobstore implements the Job State Store (C2): durable per-job
// records with status, progress, results, and cursor-paginated listing,
// backed by an embedded DuckDB database.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
)

// ErrNotFound is returned when a job_id has no record.
var ErrNotFound = errors.New("jobstore: job not found")

// ErrInvalidTransition is returned when UpdateStatus is asked to move a job
// through a status change the state machine forbids.
var ErrInvalidTransition = errors.New("jobstore: invalid status transition")

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// jobsTable is the single source of truth for the jobs schema. Per the
// teacher's pre-release consolidation precedent, there is no incremental
// migration history yet; future schema changes should be added as numbered
// migrations rather than edits to this statement once the schema ships.
const jobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id        TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	expires_at    TIMESTAMP NOT NULL,
	started_at    TIMESTAMP,
	completed_at  TIMESTAMP,
	worker_id     TEXT,
	progress      JSON NOT NULL,
	request_data  JSON,
	results       JSON,
	error_message TEXT
);
`

// Store is a DuckDB-backed Job State Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a DuckDB database file at path and
// ensures the jobs schema exists.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("jobstore: open: %w", err)
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := conn.Exec(schemaMigrationsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobstore: create schema_migrations: %w", err)
	}
	if _, err := conn.Exec(jobsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("jobstore: create jobs table: %w", err)
	}

	return &Store{db: conn}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new job in the queued state.
func (s *Store) Create(ctx context.Context, job *models.Job) error {
	start := time.Now()
	defer func() { metrics.RecordJobStoreQuery("create", time.Since(start)) }()

	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("jobstore: marshal progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, status, created_at, updated_at, expires_at, progress, request_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.Status, job.CreatedAt, job.UpdatedAt, job.ExpiresAt, string(progress), nullableJSON(job.RequestData))
	if err != nil {
		return fmt.Errorf("jobstore: insert: %w", err)
	}
	return nil
}

// Get fetches a job by job_id.
func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	start := time.Now()
	defer func() { metrics.RecordJobStoreQuery("get", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, created_at, updated_at, expires_at, started_at, completed_at,
		       worker_id, progress, request_data, results, error_message
		FROM jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// UpdateStatus is the sole mutation entry point for a job's status. It
// enforces models.CanTransition, stamps started_at/worker_id when entering
// processing, and stamps completed_at on any terminal transition.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, to models.JobStatus, workerID string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !models.CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}

	now := time.Now().UTC()
	var startedAt, completedAt *time.Time
	startedAt = job.StartedAt
	completedAt = job.CompletedAt
	worker := job.WorkerID
	if to == models.JobProcessing {
		startedAt = &now
		worker = workerID
	}
	if to == models.JobCompleted || to == models.JobFailed {
		completedAt = &now
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, updated_at = ?, started_at = ?, completed_at = ?, worker_id = ?
		WHERE job_id = ?`,
		to, now, startedAt, completedAt, worker, jobID)
	if err != nil {
		return fmt.Errorf("jobstore: update status: %w", err)
	}
	return nil
}

// UpdateProgress advances a job's {step, current, total} without touching
// its status.
func (s *Store) UpdateProgress(ctx context.Context, jobID string, progress models.JobProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("jobstore: marshal progress: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE jobs SET progress = ?, updated_at = ? WHERE job_id = ?`,
		string(data), time.Now().UTC(), jobID)
	return err
}

// Complete stamps a job completed with its results.
func (s *Store) Complete(ctx context.Context, jobID string, results json.RawMessage) error {
	if err := s.UpdateStatus(ctx, jobID, models.JobCompleted, ""); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET results = ? WHERE job_id = ?`, nullableJSON(results), jobID)
	return err
}

// Fail stamps a job failed with an error message.
func (s *Store) Fail(ctx context.Context, jobID string, errMsg string) error {
	if err := s.UpdateStatus(ctx, jobID, models.JobFailed, ""); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET error_message = ? WHERE job_id = ?`, errMsg, jobID)
	return err
}

// ListQuery parameters for cursor-paged job listing.
type ListQuery struct {
	Status     models.JobStatus
	Cursor     string
	Limit      int
	Descending bool
}

// ListResult is one page of jobs.
type ListResult struct {
	Jobs       []*models.Job
	NextCursor string
	HasMore    bool
}

// List returns jobs ordered by job_id, cursor-paged, optionally filtered by
// status.
func (s *Store) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	start := time.Now()
	defer func() { metrics.RecordJobStoreQuery("list", time.Since(start)) }()

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	order := "ASC"
	cmp := ">"
	if q.Descending {
		order = "DESC"
		cmp = "<"
	}

	query := fmt.Sprintf(`
		SELECT job_id, status, created_at, updated_at, expires_at, started_at, completed_at,
		       worker_id, progress, request_data, results, error_message
		FROM jobs WHERE 1=1`)
	var args []any
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status)
	}
	if q.Cursor != "" {
		query += fmt.Sprintf(" AND job_id %s ?", cmp)
		args = append(args, q.Cursor)
	}
	query += fmt.Sprintf(" ORDER BY job_id %s LIMIT ?", order)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Jobs: jobs}
	if len(jobs) > limit {
		result.Jobs = jobs[:limit]
		result.HasMore = true
		result.NextCursor = result.Jobs[len(result.Jobs)-1].JobID
	}
	return result, nil
}

// CleanupExpired deletes all jobs whose expires_at has passed and reports
// how many were removed.
func (s *Store) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("jobstore: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Stats is an aggregate count of jobs by status within a recent window.
type Stats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// AggregateStats counts jobs created within the last window, grouped by
// status.
func (s *Store) AggregateStats(ctx context.Context, window time.Duration) (*Stats, error) {
	since := time.Now().UTC().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM jobs WHERE created_at >= ? GROUP BY status`, since)
	if err != nil {
		return nil, fmt.Errorf("jobstore: stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch models.JobStatus(status) {
		case models.JobQueued:
			stats.Queued = count
		case models.JobProcessing:
			stats.Processing = count
		case models.JobCompleted:
			stats.Completed = count
		case models.JobFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	var job models.Job
	var progress string
	var requestData, results sql.NullString
	var workerID, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&job.JobID, &job.Status, &job.CreatedAt, &job.UpdatedAt, &job.ExpiresAt,
		&startedAt, &completedAt, &workerID, &progress, &requestData, &results, &errMsg)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	job.WorkerID = workerID.String
	job.ErrorMessage = errMsg.String
	if requestData.Valid {
		job.RequestData = json.RawMessage(requestData.String)
	}
	if results.Valid {
		job.Results = json.RawMessage(results.String)
	}
	if err := json.Unmarshal([]byte(progress), &job.Progress); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal progress: %w", err)
	}
	return &job, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
