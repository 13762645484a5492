package cmds

import (
	"context"
	"faucetdrops/internal/aggregate"
	"faucetdrops/internal/api"
	"faucetdrops/internal/backends"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/chain"
	"faucetdrops/internal/dashboard"
	"faucetdrops/internal/jobs"
	"faucetdrops/internal/ports"
	"faucetdrops/internal/pub"
	"faucetdrops/internal/types"
	"fmt"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// App holds the wired service graph. Everything is built once and shared by pointer.
type App struct {
	Cache     ports.CacheStore
	Tracker   *jobs.Tracker
	Runner    *jobs.Runner
	Service   *dashboard.Service
	Handler   *api.Handler
	Scheduler *dashboard.Scheduler
}

// Build wires the application from cfg, the network list and the backend environment variables.
func Build(ctx context.Context, cfg Config, networks []types.NetworkConfig) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	cacheStore, err := backends.CacheBackendFromEnv()
	if err != nil {
		return nil, err
	}
	jobStore, err := backends.JobBackendFromEnv()
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	tracker := jobs.NewTracker(jobStore, clock)
	if cfg.JobTopicArn != "" {
		snsClient, err := pub.NewSNSClient(ctx, cfg.SNSEndpoint)
		if err != nil {
			return nil, err
		}
		tracker = tracker.WithNotifier(pub.NewSNS(snsClient), cfg.JobTopicArn)
	}
	runner := jobs.NewRunner(tracker, cfg.JobTimeout)

	source := chain.NewClient(cfg.UpstreamTimeout, chain.WithRPCMethod(cfg.RPCMethod))
	agg := aggregate.New(source, networks, aggregate.WithDedup(cfg.DedupClaims))
	svc := dashboard.NewService(cache.NewLocal(clock), cacheStore, agg, runner, clock, dashboard.Config{
		DashboardTTL:   cfg.DashboardTTL,
		ClaimsTTL:      cfg.ClaimsTTL,
		SoftRefreshAge: cfg.SoftRefreshAge,
		Location:       loc,
	})

	app := &App{
		Cache:   cacheStore,
		Tracker: tracker,
		Runner:  runner,
		Service: svc,
		Handler: api.NewHandler(cacheStore, svc, tracker),
	}
	if cfg.RefreshCron != "" {
		app.Scheduler, err = dashboard.NewScheduler(cfg.RefreshCron, svc)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_CRON %q: %w", cfg.RefreshCron, err)
		}
	}
	log.WithFields(log.Fields{
		"networks": len(networks),
		"cron":     cfg.RefreshCron,
		"dedup":    cfg.DedupClaims,
	}).Info("Application wired")
	return app, nil
}

// Load reads the environment, the network file and wires the application.
func Load(ctx context.Context) (*App, Config, error) {
	LoadEnvFile()
	cfg, err := ParseConfig()
	if err != nil {
		return nil, Config{}, err
	}
	cfg.ConfigureLogging()
	networks, err := LoadNetworks(cfg.NetworksFile)
	if err != nil {
		return nil, Config{}, err
	}
	app, err := Build(ctx, cfg, networks)
	if err != nil {
		return nil, Config{}, err
	}
	return app, cfg, nil
}
