// Package sqlite provides a SQLite-backed cache and job store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/types"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store persists cache rows and job records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	var (
		data               string
		updated, expiresAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT data, updated_at, expires_at FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&data, &updated, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "get %s", key)
	}
	raw, err := cache.DecodePayload(data)
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "key %s", key)
	}
	entry := &types.CacheEntry{Key: key, Data: raw, UpdatedAt: time.UnixMilli(updated)}
	if expiresAt > 0 {
		entry.ExpiresAt = time.UnixMilli(expiresAt)
	}
	if entry.Expired(s.now()) {
		return nil, types.ErrNotFound
	}
	return entry, nil
}

func (s *Store) Set(ctx context.Context, key string, data json.RawMessage, expiresIn time.Duration) error {
	now := s.now()
	var expiresAt int64
	if expiresIn > 0 {
		expiresAt = now.Add(expiresIn).UnixMilli()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, data, updated_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   data = excluded.data,
		   updated_at = excluded.updated_at,
		   expires_at = excluded.expires_at`,
		key, cache.EncodePayload(data), now.UnixMilli(), expiresAt,
	)
	if err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "set %s", key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
	if err != nil {
		return false, types.Err(types.ErrDataStoreAccess, err, "delete %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeExpired removes expired cache rows and returns how many were deleted.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < ?`, s.now().UnixMilli())
	if err != nil {
		return 0, types.Err(types.ErrDataStoreAccess, err, "purge expired")
	}
	return res.RowsAffected()
}

func (s *Store) PutJob(ctx context.Context, job types.BackgroundJob) error {
	var completed sql.NullInt64
	if job.CompletedAt != nil {
		completed = sql.NullInt64{Int64: job.CompletedAt.UnixMilli(), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO background_jobs (id, job_type, status, started_at, completed_at, error_message)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   completed_at = excluded.completed_at,
		   error_message = excluded.error_message`,
		job.ID, string(job.Type), string(job.Status), job.StartedAt.UnixMilli(), completed, job.ErrorMessage,
	)
	if err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "put job %s", job.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (types.BackgroundJob, error) {
	var (
		job       types.BackgroundJob
		jobType   string
		status    string
		started   int64
		completed sql.NullInt64
	)
	if err := row.Scan(&job.ID, &jobType, &status, &started, &completed, &job.ErrorMessage); err != nil {
		return types.BackgroundJob{}, err
	}
	job.Type = types.JobType(jobType)
	job.Status = types.JobStatus(status)
	job.StartedAt = time.UnixMilli(started)
	if completed.Valid {
		t := time.UnixMilli(completed.Int64)
		job.CompletedAt = &t
	}
	return job, nil
}

const jobColumns = `id, job_type, status, started_at, completed_at, error_message`

func (s *Store) GetJob(ctx context.Context, id string) (types.BackgroundJob, error) {
	job, err := scanJob(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM background_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.BackgroundJob{}, types.ErrNotFound
	}
	if err != nil {
		return types.BackgroundJob{}, types.Err(types.ErrDataStoreAccess, err, "get job %s", id)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]types.BackgroundJob, error) {
	jobs := []types.BackgroundJob{}
	if limit <= 0 {
		return jobs, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM background_jobs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "list jobs")
	}
	defer rows.Close()
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
