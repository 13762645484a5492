package dashboard

import (
	"context"
	"errors"
	"faucetdrops/internal/aggregate"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/jobs"
	"faucetdrops/internal/metrics"
	"faucetdrops/internal/ports"
	"faucetdrops/internal/types"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const DefaultSoftRefreshAge = 2 * time.Minute

var errAllSourcesFailed = errors.New("every upstream source failed")

type Config struct {
	DashboardTTL time.Duration
	ClaimsTTL    time.Duration
	// SoftRefreshAge is the cached data age past which a hit also starts a background refresh. Zero disables it.
	SoftRefreshAge time.Duration
	Location       *time.Location
}

func (c Config) withDefaults() Config {
	if c.DashboardTTL <= 0 {
		c.DashboardTTL = cache.DefaultDashboardTTL
	}
	if c.ClaimsTTL <= 0 {
		c.ClaimsTTL = cache.DefaultClaimsTTL
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Result is a served value and whether it came from a cache layer.
type Result[T any] struct {
	Data      T         `json:"data"`
	Cached    bool      `json:"cached"`
	Timestamp time.Time `json:"timestamp"`
}

// Service serves dashboard data from the local cache, then the remote cache, then a fresh aggregation.
// Fresh results are written through to both layers.
type Service struct {
	local  *cache.Local
	remote ports.CacheStore
	agg    *aggregate.Aggregator
	runner *jobs.Runner
	clock  clockwork.Clock
	cfg    Config
}

// NewService wires the service. remote may be nil, in which case only the local layer is used.
func NewService(local *cache.Local, remote ports.CacheStore, agg *aggregate.Aggregator, runner *jobs.Runner, clock clockwork.Clock, cfg Config) *Service {
	return &Service{
		local:  local,
		remote: remote,
		agg:    agg,
		runner: runner,
		clock:  clock,
		cfg:    cfg.withDefaults(),
	}
}

// Dashboard returns the dashboard snapshot. When nothing can be served it returns a zeroed, degraded snapshot
// rather than an error; an error is returned only when ctx is done.
func (s *Service) Dashboard(ctx context.Context) (Result[types.DashboardSnapshot], error) {
	var snap types.DashboardSnapshot
	if age, ok := s.lookup(ctx, cache.KeyDashboard, &snap); ok {
		s.maybeSoftRefresh(ctx, cache.KeyDashboard, age, types.JobDashboardRefresh, s.refreshDashboard)
		return Result[types.DashboardSnapshot]{Data: snap, Cached: true, Timestamp: snap.LastUpdated}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result[types.DashboardSnapshot]{}, err
	}

	snap, err := s.computeDashboard(ctx)
	if err != nil {
		log.WithError(err).Warn("Dashboard computation failed, serving empty snapshot")
		return Result[types.DashboardSnapshot]{Data: snap, Timestamp: snap.LastUpdated}, ctx.Err()
	}
	return Result[types.DashboardSnapshot]{Data: snap, Timestamp: snap.LastUpdated}, nil
}

// Claims returns the unified claim list, newest first.
func (s *Service) Claims(ctx context.Context) (Result[[]types.ClaimRecord], error) {
	now := s.clock.Now()
	var claims []types.ClaimRecord
	if age, ok := s.lookup(ctx, cache.KeyClaims, &claims); ok {
		s.maybeSoftRefresh(ctx, cache.KeyClaims, age, types.JobClaimsRefresh, s.refreshClaims)
		return Result[[]types.ClaimRecord]{Data: claims, Cached: true, Timestamp: now.Add(-age)}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result[[]types.ClaimRecord]{}, err
	}

	res := s.agg.Unified(ctx)
	if allFailed(res) {
		log.Warn("Every claim source failed, serving empty claim list")
		return Result[[]types.ClaimRecord]{Data: []types.ClaimRecord{}, Timestamp: now}, ctx.Err()
	}
	s.store(ctx, cache.KeyClaims, res.Claims, s.cfg.ClaimsTTL)
	return Result[[]types.ClaimRecord]{Data: res.Claims, Timestamp: now}, nil
}

// TriggerRefresh starts a background refresh for dataType and returns the job id without waiting for it.
func (s *Service) TriggerRefresh(ctx context.Context, dataType types.DataType) (string, error) {
	jobType, fn, err := s.refreshFor(dataType)
	if err != nil {
		return "", err
	}
	return s.runner.Spawn(ctx, jobType, fn)
}

// Refresh is TriggerRefresh that waits for the refresh and returns its outcome.
func (s *Service) Refresh(ctx context.Context, dataType types.DataType) (string, error) {
	jobType, fn, err := s.refreshFor(dataType)
	if err != nil {
		return "", err
	}
	return s.runner.Run(ctx, jobType, fn)
}

func (s *Service) refreshFor(dataType types.DataType) (types.JobType, func(context.Context) error, error) {
	jobType, err := dataType.JobType()
	if err != nil {
		return "", nil, err
	}
	switch jobType {
	case types.JobDashboardRefresh:
		return jobType, s.refreshDashboard, nil
	case types.JobClaimsRefresh:
		return jobType, s.refreshClaims, nil
	default:
		return jobType, s.refreshAll, nil
	}
}

// Invalidate drops key from both cache layers.
func (s *Service) Invalidate(ctx context.Context, key string) {
	s.local.Delete(key)
	if s.remote == nil {
		return
	}
	if _, err := s.remote.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("Remote cache delete failed")
	}
}

func (s *Service) computeDashboard(ctx context.Context) (types.DashboardSnapshot, error) {
	res := s.agg.Collect(ctx)
	now := s.clock.Now()
	if allFailed(res) {
		snap := types.EmptySnapshot(now)
		snap.Sources = res.Statuses()
		return snap, errAllSourcesFailed
	}
	snap := metrics.Snapshot(res, now, s.cfg.Location)
	s.store(ctx, cache.KeyDashboard, snap, s.cfg.DashboardTTL)
	return snap, nil
}

func (s *Service) refreshDashboard(ctx context.Context) error {
	_, err := s.computeDashboard(ctx)
	return err
}

func (s *Service) refreshClaims(ctx context.Context) error {
	res := s.agg.Unified(ctx)
	if allFailed(res) {
		return errAllSourcesFailed
	}
	s.store(ctx, cache.KeyClaims, res.Claims, s.cfg.ClaimsTTL)
	return nil
}

// refreshAll serves both keys from a single aggregation.
func (s *Service) refreshAll(ctx context.Context) error {
	res := s.agg.Unified(ctx)
	if allFailed(res) {
		return errAllSourcesFailed
	}
	s.store(ctx, cache.KeyClaims, res.Claims, s.cfg.ClaimsTTL)
	s.store(ctx, cache.KeyDashboard, metrics.Snapshot(res, s.clock.Now(), s.cfg.Location), s.cfg.DashboardTTL)
	return nil
}

// lookup decodes key from the local layer, falling back to the remote layer, and returns the age of the data.
// Remote hits are copied into the local layer for the rest of their lifetime and keep their original write time.
// Any cache error reads as a miss.
func (s *Service) lookup(ctx context.Context, key string, out any) (time.Duration, bool) {
	if s.local.GetJSON(key, out) {
		age, _ := s.local.Age(key)
		return age, true
	}
	if s.remote == nil {
		return 0, false
	}
	entry, err := s.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			log.WithError(err).WithField("key", key).Warn("Remote cache read failed, treating as miss")
		}
		return 0, false
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		log.WithError(err).WithField("key", key).Warn("Remote cache entry undecodable, treating as miss")
		return 0, false
	}
	now := s.clock.Now()
	age := time.Duration(0)
	if !entry.UpdatedAt.IsZero() && entry.UpdatedAt.Before(now) {
		age = now.Sub(entry.UpdatedAt)
	}
	ttl := time.Duration(0)
	if !entry.ExpiresAt.IsZero() {
		ttl = entry.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return age, true
		}
	}
	s.local.SetRawAt(key, entry.Data, ttl, entry.UpdatedAt)
	return age, true
}

// store writes v through both cache layers. Failures are logged only.
func (s *Service) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("Cache value encode failed")
		return
	}
	s.local.SetRaw(key, raw, ttl)
	if s.remote == nil {
		return
	}
	if err := s.remote.Set(ctx, key, raw, ttl); err != nil {
		log.WithError(err).WithField("key", key).Warn("Remote cache write failed")
	}
}

func (s *Service) maybeSoftRefresh(ctx context.Context, key string, age time.Duration, jobType types.JobType, fn func(context.Context) error) {
	if s.cfg.SoftRefreshAge <= 0 || s.runner == nil || age < s.cfg.SoftRefreshAge {
		return
	}
	id, started, err := s.runner.SpawnOnce(ctx, jobType, fn)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("Soft refresh not started")
		return
	}
	if started {
		log.WithFields(log.Fields{"key": key, "jobID": id, "age": age}).Debug("Soft refresh started")
	}
}

// allFailed reports whether there was at least one source and none of them succeeded.
func allFailed(res aggregate.Result) bool {
	if len(res.Sources) == 0 {
		return false
	}
	for _, src := range res.Sources {
		if src.Err == nil {
			return false
		}
	}
	return true
}
