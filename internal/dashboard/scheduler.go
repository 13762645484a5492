package dashboard

import (
	"context"
	"faucetdrops/internal/types"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type Refresher interface {
	TriggerRefresh(ctx context.Context, dataType types.DataType) (string, error)
}

// Scheduler triggers a full refresh on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler accepts standard five-field schedules and descriptors such as "@every 5m".
func NewScheduler(schedule string, r Refresher) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		id, err := r.TriggerRefresh(context.Background(), types.DataAll)
		if err != nil {
			log.WithError(err).Error("Scheduled refresh not started")
			return
		}
		log.WithField("jobID", id).Info("Scheduled refresh started")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a running trigger returns.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
