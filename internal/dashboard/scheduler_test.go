package dashboard

import (
	"context"
	"faucetdrops/internal/types"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRefresher struct {
	mu    sync.Mutex
	calls []types.DataType
}

func (r *recordingRefresher) TriggerRefresh(_ context.Context, dataType types.DataType) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dataType)
	return "job-1", nil
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler("every now and then", &recordingRefresher{})
	assert.Error(t, err)
}

func TestSchedulerTriggersFullRefresh(t *testing.T) {
	r := &recordingRefresher{}
	s, err := NewScheduler("@every 5m", r)
	require.NoError(t, err)

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()
	assert.Equal(t, []types.DataType{types.DataAll}, r.calls)

	s.Start()
	<-s.Stop().Done()
}
