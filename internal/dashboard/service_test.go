package dashboard

import (
	"context"
	"errors"
	"faucetdrops/internal/aggregate"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/jobs"
	"faucetdrops/internal/types"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	redisbackend "faucetdrops/internal/backends/redis"
)

type countingSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (c *countingSource) StorageClaims(_ context.Context, n types.NetworkConfig) ([]types.StorageClaim, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, types.ErrUpstream
	}
	out := make([]types.StorageClaim, 0, 3)
	for i := 1; i <= 3; i++ {
		sc := types.StorageClaim{
			Claimer:   fmt.Sprintf("0x%040d", i),
			Faucet:    fmt.Sprintf("0xf%039d", 1),
			Timestamp: types.FlexInt(1_700_000_000 + i),
		}
		sc.Amount.SetInt64(int64(i))
		out = append(out, sc)
	}
	return out, nil
}

func (c *countingSource) FactoryTransactions(_ context.Context, n types.NetworkConfig, _ string) ([]types.FactoryTransaction, error) {
	c.calls.Add(1)
	return nil, errors.New("rpc down")
}

// fixedRemote serves preset entries and accepts writes without storing them.
type fixedRemote struct {
	entries map[string]*types.CacheEntry
	sets    atomic.Int32
}

func (f *fixedRemote) Get(_ context.Context, key string) (*types.CacheEntry, error) {
	e, ok := f.entries[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	return e, nil
}

func (f *fixedRemote) Set(context.Context, string, json.RawMessage, time.Duration) error {
	f.sets.Add(1)
	return nil
}

func (f *fixedRemote) Delete(context.Context, string) (bool, error) { return false, nil }

type ServiceTestSuite struct {
	suite.Suite

	mr     *miniredis.Miniredis
	cli    *redis.Client
	clock  *clockwork.FakeClock
	src    *countingSource
	remote *redisbackend.CacheStore
	jobs   *jobs.Tracker
	runner *jobs.Runner
	agg    *aggregate.Aggregator
	svc    *Service
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.cli = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.clock = clockwork.NewFakeClockAt(time.Date(2023, time.November, 20, 0, 0, 0, 0, time.UTC))
	s.src = &countingSource{}
	s.remote = redisbackend.NewCacheStore(s.cli)
	s.jobs = jobs.NewTracker(redisbackend.NewJobStore(s.cli), s.clock)
	s.runner = jobs.NewRunner(s.jobs, time.Minute)
	s.agg = aggregate.New(s.src, []types.NetworkConfig{{
		Name: "celo", ChainID: 42220, RPCURLs: []string{"http://rpc"},
		FactoryAddresses: []string{"0x1111111111111111111111111111111111111111"},
	}})
	s.svc = s.newService(cache.NewLocal(s.clock), Config{Location: time.UTC})
}

func (s *ServiceTestSuite) TearDownTest() {
	s.runner.Wait()
	_ = s.cli.Close()
}

func (s *ServiceTestSuite) newService(local *cache.Local, cfg Config) *Service {
	return NewService(local, s.remote, s.agg, s.runner, s.clock, cfg)
}

func (s *ServiceTestSuite) TestFreshThenCached() {
	ctx := context.Background()
	first, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.False(first.Cached)
	s.Equal(3, first.Data.TotalClaims)
	s.Equal(3, first.Data.UniqueUsers)
	s.True(first.Data.Degraded)
	s.Len(first.Data.Sources, 2)
	calls := s.src.calls.Load()

	second, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(second.Cached)
	s.Equal(first.Data.TotalClaims, second.Data.TotalClaims)
	s.Equal(calls, s.src.calls.Load())

	entry, err := s.remote.Get(ctx, cache.KeyDashboard)
	s.Require().NoError(err)
	var snap types.DashboardSnapshot
	s.Require().NoError(json.Unmarshal(entry.Data, &snap))
	s.Equal(3, snap.TotalClaims)
}

func (s *ServiceTestSuite) TestRemoteHitServesOtherInstance() {
	ctx := context.Background()
	_, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	calls := s.src.calls.Load()

	other := s.newService(cache.NewLocal(s.clock), Config{Location: time.UTC})
	res, err := other.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)
	s.Equal(3, res.Data.TotalClaims)
	s.Equal(calls, s.src.calls.Load())
}

func (s *ServiceTestSuite) TestLocalExpiryRecomputesWithoutRemote() {
	ctx := context.Background()
	svc := NewService(cache.NewLocal(s.clock), nil, s.agg, s.runner, s.clock, Config{Location: time.UTC})
	_, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	calls := s.src.calls.Load()

	s.clock.Advance(cache.DefaultDashboardTTL + time.Second)
	res, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.False(res.Cached)
	s.Greater(s.src.calls.Load(), calls)
}

func (s *ServiceTestSuite) TestTotalFailureServesEmptySnapshotUncached() {
	s.src.fail.Store(true)
	ctx := context.Background()
	res, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.False(res.Cached)
	s.Zero(res.Data.TotalClaims)
	s.True(res.Data.Degraded)
	s.Equal("+0.0%", res.Data.MonthlyChange[types.MetricTotalClaims])

	_, err = s.remote.Get(ctx, cache.KeyDashboard)
	s.ErrorIs(err, types.ErrNotFound)

	s.src.fail.Store(false)
	res, err = s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.Equal(3, res.Data.TotalClaims)
}

func (s *ServiceTestSuite) TestClaimsSortedAndCached() {
	ctx := context.Background()
	res, err := s.svc.Claims(ctx)
	s.Require().NoError(err)
	s.False(res.Cached)
	s.Require().Len(res.Data, 3)
	s.Equal(int64(1_700_000_003), res.Data[0].TimestampSeconds)
	s.Equal(int64(1_700_000_001), res.Data[2].TimestampSeconds)

	again, err := s.svc.Claims(ctx)
	s.Require().NoError(err)
	s.True(again.Cached)
	s.Equal(res.Data[0].ClaimerAddress, again.Data[0].ClaimerAddress)
	s.Equal(0, res.Data[0].Amount.Cmp(again.Data[0].Amount))
}

func (s *ServiceTestSuite) TestTriggerRefreshAll() {
	ctx := context.Background()
	id, err := s.svc.TriggerRefresh(ctx, types.DataAll)
	s.Require().NoError(err)
	s.NotEmpty(id)
	s.runner.Wait()

	job, err := s.jobs.GetJob(ctx, id)
	s.Require().NoError(err)
	s.Equal(types.JobAllRefresh, job.Type)
	s.Equal(types.JobCompleted, job.Status)

	for _, key := range []string{cache.KeyDashboard, cache.KeyClaims} {
		_, err := s.remote.Get(ctx, key)
		s.NoError(err, key)
	}
}

func (s *ServiceTestSuite) TestTriggerRefreshFailureMarksJobFailed() {
	s.src.fail.Store(true)
	ctx := context.Background()
	id, err := s.svc.TriggerRefresh(ctx, types.DataClaims)
	s.Require().NoError(err)
	s.runner.Wait()

	job, err := s.jobs.GetJob(ctx, id)
	s.Require().NoError(err)
	s.Equal(types.JobFailed, job.Status)
	s.NotEmpty(job.ErrorMessage)
}

func (s *ServiceTestSuite) TestTriggerRefreshRejectsUnknownType() {
	_, err := s.svc.TriggerRefresh(context.Background(), types.DataType("everything"))
	s.ErrorIs(err, types.ErrInvalidDataType)
}

func (s *ServiceTestSuite) TestSoftRefreshOnAgedHit() {
	ctx := context.Background()
	svc := s.newService(cache.NewLocal(s.clock), Config{Location: time.UTC, SoftRefreshAge: time.Minute})
	_, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	calls := s.src.calls.Load()

	res, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)
	s.runner.Wait()
	s.Equal(calls, s.src.calls.Load())

	s.clock.Advance(2 * time.Minute)
	res, err = svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)
	s.runner.Wait()
	s.Greater(s.src.calls.Load(), calls)

	jobsList, err := s.jobs.ListJobs(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(jobsList, 1)
	s.Equal(types.JobDashboardRefresh, jobsList[0].Type)
}

func (s *ServiceTestSuite) agedRemote(age, remaining time.Duration) *fixedRemote {
	now := s.clock.Now()
	snap, err := json.Marshal(types.DashboardSnapshot{TotalClaims: 7, LastUpdated: now.Add(-age)})
	s.Require().NoError(err)
	claims, err := json.Marshal([]types.ClaimRecord{})
	s.Require().NoError(err)
	entry := func(key string, data json.RawMessage) *types.CacheEntry {
		return &types.CacheEntry{Key: key, Data: data, UpdatedAt: now.Add(-age), ExpiresAt: now.Add(remaining)}
	}
	return &fixedRemote{entries: map[string]*types.CacheEntry{
		cache.KeyDashboard: entry(cache.KeyDashboard, snap),
		cache.KeyClaims:    entry(cache.KeyClaims, claims),
	}}
}

func (s *ServiceTestSuite) TestRemoteHitKeepsWriteTime() {
	ctx := context.Background()
	remote := s.agedRemote(4*time.Minute, time.Minute)
	local := cache.NewLocal(s.clock)
	svc := NewService(local, remote, s.agg, s.runner, s.clock, Config{Location: time.UTC, SoftRefreshAge: 10 * time.Minute})

	res, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)
	s.Equal(7, res.Data.TotalClaims)
	age, ok := local.Age(cache.KeyDashboard)
	s.True(ok)
	s.Equal(4*time.Minute, age)

	claims, err := svc.Claims(ctx)
	s.Require().NoError(err)
	s.True(claims.Cached)
	s.Equal(s.clock.Now().Add(-4*time.Minute), claims.Timestamp)

	// Served from the local copy now, still with the remote write time.
	claims, err = svc.Claims(ctx)
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(-4*time.Minute), claims.Timestamp)
	s.Zero(s.src.calls.Load())

	// The copy only lives for what was left of the remote lifetime.
	s.clock.Advance(2 * time.Minute)
	s.True(local.IsExpired(cache.KeyDashboard))
}

func (s *ServiceTestSuite) TestSoftRefreshOnAgedRemoteHit() {
	ctx := context.Background()
	remote := s.agedRemote(4*time.Minute, time.Minute)
	svc := NewService(cache.NewLocal(s.clock), remote, s.agg, s.runner, s.clock, Config{Location: time.UTC, SoftRefreshAge: 2 * time.Minute})

	res, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)
	s.runner.Wait()

	jobsList, err := s.jobs.ListJobs(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(jobsList, 1)
	s.Equal(types.JobDashboardRefresh, jobsList[0].Type)
	s.Positive(s.src.calls.Load())
	s.Positive(remote.sets.Load())
}

func (s *ServiceTestSuite) TestYoungRemoteHitSkipsSoftRefresh() {
	ctx := context.Background()
	remote := s.agedRemote(30*time.Second, time.Minute)
	svc := NewService(cache.NewLocal(s.clock), remote, s.agg, s.runner, s.clock, Config{Location: time.UTC, SoftRefreshAge: 2 * time.Minute})

	res, err := svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)
	s.runner.Wait()

	jobsList, err := s.jobs.ListJobs(ctx, 10)
	s.Require().NoError(err)
	s.Empty(jobsList)
	s.Zero(s.src.calls.Load())
}

func (s *ServiceTestSuite) TestInvalidate() {
	ctx := context.Background()
	_, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)

	s.svc.Invalidate(ctx, cache.KeyDashboard)
	_, err = s.remote.Get(ctx, cache.KeyDashboard)
	s.ErrorIs(err, types.ErrNotFound)
	res, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.False(res.Cached)
}

func (s *ServiceTestSuite) TestRefreshWaits() {
	ctx := context.Background()
	id, err := s.svc.Refresh(ctx, types.DataDashboard)
	s.Require().NoError(err)
	job, err := s.jobs.GetJob(ctx, id)
	s.Require().NoError(err)
	s.Equal(types.JobCompleted, job.Status)

	res, err := s.svc.Dashboard(ctx)
	s.Require().NoError(err)
	s.True(res.Cached)

	s.src.fail.Store(true)
	_, err = s.svc.Refresh(ctx, types.DataAll)
	s.ErrorIs(err, errAllSourcesFailed)
}
