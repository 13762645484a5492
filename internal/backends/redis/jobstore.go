package redis

import (
	"context"
	"errors"
	"faucetdrops/internal/types"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	jobKeyNameTemplate = "_fd_job_%s"
	jobIndexKeyName    = "_fd_jobs" // sorted set of job ids scored by start time
)

type JobStore struct {
	cli *redis.Client
}

func NewJobStore(cli *redis.Client) *JobStore {
	return &JobStore{cli: cli}
}

func (s *JobStore) PutJob(ctx context.Context, job types.BackgroundJob) error {
	out, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, getJobKeyName(job.ID), string(out), 0)
		pipe.ZAdd(ctx, jobIndexKeyName, redis.Z{
			Score:  float64(job.StartedAt.UnixMilli()),
			Member: job.ID,
		})
		return nil
	})
	if err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "put job %s", job.ID)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (types.BackgroundJob, error) {
	out, err := s.cli.Get(ctx, getJobKeyName(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.BackgroundJob{}, types.ErrNotFound
		}
		return types.BackgroundJob{}, types.Err(types.ErrDataStoreAccess, err, "get job %s", id)
	}
	var job types.BackgroundJob
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		return types.BackgroundJob{}, err
	}
	return job, nil
}

func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]types.BackgroundJob, error) {
	if limit <= 0 {
		return []types.BackgroundJob{}, nil
	}
	ids, err := s.cli.ZRevRange(ctx, jobIndexKeyName, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "list jobs")
	}
	jobs := make([]types.BackgroundJob, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = getJobKeyName(id)
	}
	vals, err := s.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "list jobs")
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var job types.BackgroundJob
		if err := json.Unmarshal([]byte(str), &job); err != nil {
			log.WithError(err).WithField("jobID", ids[i]).Warn("skipping undecodable job record")
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func getJobKeyName(id string) string {
	return fmt.Sprintf(jobKeyNameTemplate, id)
}
