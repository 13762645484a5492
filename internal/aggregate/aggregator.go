package aggregate

import (
	"context"
	"faucetdrops/internal/ports"
	"faucetdrops/internal/types"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// SourceResult is the outcome of one upstream slice: the storage index of a network or one factory
// address. A failed slice carries Err and no records.
type SourceResult struct {
	Network string
	Origin  types.SourceOrigin
	Address string
	Records []types.ClaimRecord

	// Factory slices only: every transaction returned, claim or not.
	TxTimes []int64
	Faucets []string

	Err error
}

func (r SourceResult) Status() types.SourceStatus {
	s := types.SourceStatus{
		Network: r.Network,
		Origin:  r.Origin,
		Address: r.Address,
		Records: len(r.Records),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// Result is the unified claim sequence plus the factory activity needed for faucet and transaction totals.
type Result struct {
	Claims  []types.ClaimRecord
	Sources []SourceResult
}

// Degraded reports whether any slice failed.
func (r Result) Degraded() bool {
	for _, s := range r.Sources {
		if s.Err != nil {
			return true
		}
	}
	return false
}

func (r Result) Statuses() []types.SourceStatus {
	out := make([]types.SourceStatus, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, s.Status())
	}
	return out
}

// Totals summarizes faucet and transaction activity for the metrics reducer.
type Totals struct {
	// FaucetFirstSeen maps each distinct faucet to the earliest timestamp it was observed at.
	FaucetFirstSeen map[string]int64
	// TxTimes holds the timestamp of every factory transaction including non-claims.
	TxTimes []int64
}

func (t Totals) Faucets() int      { return len(t.FaucetFirstSeen) }
func (t Totals) Transactions() int { return len(t.TxTimes) }

func (r Result) Totals() Totals {
	t := Totals{FaucetFirstSeen: make(map[string]int64)}
	see := func(faucet string, ts int64) {
		if faucet == "" {
			return
		}
		if prev, ok := t.FaucetFirstSeen[faucet]; !ok || ts < prev {
			t.FaucetFirstSeen[faucet] = ts
		}
	}
	for _, c := range r.Claims {
		see(c.FaucetAddress, c.TimestampSeconds)
	}
	for _, s := range r.Sources {
		t.TxTimes = append(t.TxTimes, s.TxTimes...)
		for i, f := range s.Faucets {
			see(f, s.TxTimes[i])
		}
	}
	return t
}

type Option func(*Aggregator)

// WithDedup collapses factory records that duplicate a storage record.
func WithDedup(on bool) Option { return func(a *Aggregator) { a.dedup = on } }

// Aggregator merges claims from every configured network and source into one sequence.
type Aggregator struct {
	src      ports.ClaimSource
	networks []types.NetworkConfig
	dedup    bool
}

func New(src ports.ClaimSource, networks []types.NetworkConfig, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, networks: networks}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Aggregator) Networks() []types.NetworkConfig {
	return a.networks
}

// Collect fans out to every network and source and returns the concatenated records in no particular
// order. A failing slice is logged and contributes nothing; Collect itself never fails.
func (a *Aggregator) Collect(ctx context.Context) Result {
	type task struct {
		network types.NetworkConfig
		origin  types.SourceOrigin
		address string
	}
	var tasks []task
	for _, n := range a.networks {
		tasks = append(tasks, task{network: n, origin: types.OriginStorage})
		for _, f := range n.FactoryAddresses {
			tasks = append(tasks, task{network: n, origin: types.OriginFactory, address: f})
		}
	}

	results := make([]SourceResult, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if t.origin == types.OriginStorage {
				results[i] = a.fetchStorage(ctx, t.network)
			} else {
				results[i] = a.fetchFactory(ctx, t.network, t.address)
			}
			if err := results[i].Err; err != nil {
				log.WithError(err).WithFields(log.Fields{
					"network": t.network.Name,
					"origin":  t.origin,
					"address": t.address,
				}).Warn("Source fetch failed, continuing without it")
			}
		}()
	}
	wg.Wait()

	var claims []types.ClaimRecord
	for _, r := range results {
		claims = append(claims, r.Records...)
	}
	if a.dedup {
		claims = Dedup(claims)
	}
	if claims == nil {
		claims = []types.ClaimRecord{}
	}
	return Result{Claims: claims, Sources: results}
}

// Unified is Collect with the claims sorted newest first.
func (a *Aggregator) Unified(ctx context.Context) Result {
	res := a.Collect(ctx)
	SortNewestFirst(res.Claims)
	return res
}

// SortNewestFirst orders claims by timestamp descending. Ties are broken by network, faucet and claimer
// so the order does not depend on fetch completion.
func SortNewestFirst(claims []types.ClaimRecord) {
	sort.SliceStable(claims, func(i, j int) bool {
		a, b := claims[i], claims[j]
		if a.TimestampSeconds != b.TimestampSeconds {
			return a.TimestampSeconds > b.TimestampSeconds
		}
		if a.ChainID != b.ChainID {
			return a.ChainID < b.ChainID
		}
		if a.FaucetAddress != b.FaucetAddress {
			return a.FaucetAddress < b.FaucetAddress
		}
		if a.ClaimerAddress != b.ClaimerAddress {
			return a.ClaimerAddress < b.ClaimerAddress
		}
		return a.SourceOrigin < b.SourceOrigin
	})
}

func (a *Aggregator) fetchStorage(ctx context.Context, network types.NetworkConfig) SourceResult {
	res := SourceResult{Network: network.Name, Origin: types.OriginStorage}
	claims, err := a.src.StorageClaims(ctx, network)
	if err != nil {
		res.Err = err
		return res
	}
	res.Records = make([]types.ClaimRecord, 0, len(claims))
	for _, c := range claims {
		res.Records = append(res.Records, FromStorage(c, network))
	}
	return res
}

func (a *Aggregator) fetchFactory(ctx context.Context, network types.NetworkConfig, factory string) SourceResult {
	res := SourceResult{Network: network.Name, Origin: types.OriginFactory, Address: types.NormalizeAddress(factory)}
	txs, err := a.src.FactoryTransactions(ctx, network, factory)
	if err != nil {
		res.Err = err
		return res
	}
	res.Records = make([]types.ClaimRecord, 0, len(txs))
	res.TxTimes = make([]int64, 0, len(txs))
	res.Faucets = make([]string, 0, len(txs))
	for _, tx := range txs {
		res.TxTimes = append(res.TxTimes, types.NormalizeTimestamp(int64(tx.Timestamp)))
		res.Faucets = append(res.Faucets, types.NormalizeAddress(tx.FaucetAddress))
		if IsClaim(tx.TransactionType) {
			res.Records = append(res.Records, FromFactory(tx, network))
		}
	}
	return res
}
