package jobs

import (
	"context"
	"faucetdrops/internal/ports"
	"faucetdrops/internal/types"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Tracker records the lifecycle of background refreshes in a JobStore.
type Tracker struct {
	store ports.JobStore
	clock clockwork.Clock

	pub      ports.Publisher
	topicArn string

	mu sync.Mutex // serializes read-modify-write of job records
}

func NewTracker(store ports.JobStore, clock clockwork.Clock) *Tracker {
	return &Tracker{store: store, clock: clock}
}

// WithNotifier publishes every terminal job state to topicArn.
func (t *Tracker) WithNotifier(pub ports.Publisher, topicArn string) *Tracker {
	t.pub = pub
	t.topicArn = topicArn
	return t
}

// CreateJob inserts a pending record and moves it to running. Store errors are returned: a job that cannot be
// tracked must not run.
func (t *Tracker) CreateJob(ctx context.Context, jobType types.JobType) (string, error) {
	job := types.BackgroundJob{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    types.JobPending,
		StartedAt: t.clock.Now(),
	}
	if err := t.store.PutJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	if err := job.Apply(types.JobRunning, "", t.clock.Now()); err != nil {
		return "", err
	}
	if err := t.store.PutJob(ctx, job); err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}
	log.WithFields(log.Fields{"jobID": job.ID, "type": jobType}).Debug("Job started")
	return job.ID, nil
}

// UpdateJob moves a job to a terminal status. Non-terminal targets and transitions out of a different terminal
// status fail with types.ErrInvalidTransition.
func (t *Tracker) UpdateJob(ctx context.Context, id string, status types.JobStatus, errMsg string) error {
	if !status.Terminal() {
		return types.Err(types.ErrInvalidTransition, nil, "job %s: %s is not a terminal status", id, status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == status {
		return nil
	}
	if err := job.Apply(status, errMsg, t.clock.Now()); err != nil {
		return err
	}
	if err := t.store.PutJob(ctx, job); err != nil {
		return err
	}
	t.notify(ctx, job)
	return nil
}

func (t *Tracker) GetJob(ctx context.Context, id string) (types.BackgroundJob, error) {
	return t.store.GetJob(ctx, id)
}

func (t *Tracker) ListJobs(ctx context.Context, limit int) ([]types.BackgroundJob, error) {
	return t.store.ListJobs(ctx, limit)
}

func (t *Tracker) notify(ctx context.Context, job types.BackgroundJob) {
	if t.pub == nil || t.topicArn == "" {
		return
	}
	b, err := json.Marshal(job)
	if err != nil {
		log.WithError(err).WithField("jobID", job.ID).Error("Failed to marshal job notification")
		return
	}
	if err := t.pub.PublishRaw(ctx, t.topicArn, b); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"jobID":  job.ID,
			"snsArn": t.topicArn,
		}).Warn("Failed to publish job notification")
	}
}
