package jobs

import (
	"context"
	"faucetdrops/internal/types"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultJobTimeout = 2 * time.Minute

// Runner starts tracked work in detached goroutines. Spawn returns as soon as the job record exists;
// the outcome is observable only through the Tracker.
type Runner struct {
	tracker *Tracker
	timeout time.Duration

	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[types.JobType]string
}

func NewRunner(tracker *Tracker, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Runner{
		tracker:  tracker,
		timeout:  timeout,
		inflight: make(map[types.JobType]string),
	}
}

// Spawn creates a job and runs fn in the background. The work context survives cancellation of ctx but is
// bounded by the runner timeout.
func (r *Runner) Spawn(ctx context.Context, jobType types.JobType, fn func(context.Context) error) (string, error) {
	id, err := r.tracker.CreateJob(ctx, jobType)
	if err != nil {
		return "", err
	}
	r.start(ctx, id, jobType, fn)
	return id, nil
}

// SpawnOnce is Spawn unless a job of the same type started by this runner is still running, in which case the
// running job id is returned and fn is not started.
func (r *Runner) SpawnOnce(ctx context.Context, jobType types.JobType, fn func(context.Context) error) (string, bool, error) {
	r.mu.Lock()
	if id, ok := r.inflight[jobType]; ok {
		r.mu.Unlock()
		return id, false, nil
	}
	// Reserve the slot before the store round trip so concurrent callers do not both spawn.
	r.inflight[jobType] = ""
	r.mu.Unlock()

	id, err := r.tracker.CreateJob(ctx, jobType)
	if err != nil {
		r.mu.Lock()
		delete(r.inflight, jobType)
		r.mu.Unlock()
		return "", false, err
	}
	r.mu.Lock()
	r.inflight[jobType] = id
	r.mu.Unlock()
	r.start(ctx, id, jobType, fn)
	return id, true, nil
}

// Run creates a job and runs fn on the calling goroutine, returning fn's error once the job is updated.
func (r *Runner) Run(ctx context.Context, jobType types.JobType, fn func(context.Context) error) (string, error) {
	id, err := r.tracker.CreateJob(ctx, jobType)
	if err != nil {
		return "", err
	}
	return id, r.execute(ctx, id, jobType, fn)
}

func (r *Runner) start(ctx context.Context, id string, jobType types.JobType, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(jobType, id)
		_ = r.execute(ctx, id, jobType, fn)
	}()
}

func (r *Runner) execute(ctx context.Context, id string, jobType types.JobType, fn func(context.Context) error) error {
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"jobID": id, "type": jobType})
	status, msg := types.JobCompleted, ""
	workErr := fn(workCtx)
	if workErr != nil {
		status, msg = types.JobFailed, workErr.Error()
		logger.WithError(workErr).Warn("Background job failed")
	} else {
		logger.Info("Background job completed")
	}

	// The job record is observability only: a failed update is logged, the work is already done.
	updCtx, updCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer updCancel()
	if err := r.tracker.UpdateJob(updCtx, id, status, msg); err != nil {
		logger.WithError(err).Error("Failed to update job status")
	}
	return workErr
}

func (r *Runner) release(jobType types.JobType, id string) {
	r.mu.Lock()
	if r.inflight[jobType] == id {
		delete(r.inflight, jobType)
	}
	r.mu.Unlock()
}

// Wait blocks until every spawned job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
