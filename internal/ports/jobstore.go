package ports

import (
	"context"
	"faucetdrops/internal/types"
)

// JobStore persists background job records. Records are never deleted.
type JobStore interface {
	// PutJob creates or replaces the job record.
	PutJob(ctx context.Context, job types.BackgroundJob) error

	// GetJob MUST return types.ErrNotFound if the job does not exist.
	GetJob(ctx context.Context, id string) (types.BackgroundJob, error)

	// ListJobs returns up to limit jobs, most recently started first.
	ListJobs(ctx context.Context, limit int) ([]types.BackgroundJob, error)
}
