package metrics

import (
	"faucetdrops/internal/aggregate"
	"faucetdrops/internal/types"
	"fmt"
	"time"
)

// CalculateChange formats the relative change from previous to current as a signed percentage with one
// decimal place.
func CalculateChange(current, previous int) string {
	switch {
	case previous == 0 && current == 0:
		return "+0.0%"
	case previous == 0:
		return "+∞%"
	}
	pct := float64(current-previous) / float64(previous) * 100
	return fmt.Sprintf("%+.1f%%", pct)
}

// window is a calendar month [start, end) in a location.
type window struct {
	start, end time.Time
}

func (w window) contains(ts int64) bool {
	t := time.Unix(ts, 0)
	return !t.Before(w.start) && t.Before(w.end)
}

func months(now time.Time, loc *time.Location) (cur, prev window) {
	now = now.In(loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	cur = window{start: start, end: start.AddDate(0, 1, 0)}
	prev = window{start: start.AddDate(0, -1, 0), end: start}
	return cur, prev
}

type counter struct {
	cur, prev int
}

func (c *counter) add(ts int64, cur, prev window) {
	switch {
	case cur.contains(ts):
		c.cur++
	case prev.contains(ts):
		c.prev++
	}
}

// UniqueUsers counts distinct well-formed claimer addresses, ignoring case.
func UniqueUsers(claims []types.ClaimRecord) int {
	seen := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		if !types.IsAddress(c.ClaimerAddress) {
			continue
		}
		seen[types.NormalizeAddress(c.ClaimerAddress)] = struct{}{}
	}
	return len(seen)
}

// Reduce computes the dashboard snapshot. Month-over-month changes compare the calendar month containing now
// with the one before it, both in loc. Faucets count in the month they were first seen.
func Reduce(claims []types.ClaimRecord, totals aggregate.Totals, now time.Time, loc *time.Location) types.DashboardSnapshot {
	if loc == nil {
		loc = time.Local
	}
	cur, prev := months(now, loc)

	var claimCount, faucetCount, txCount counter
	usersCur := make(map[string]struct{})
	usersPrev := make(map[string]struct{})
	for _, c := range claims {
		claimCount.add(c.TimestampSeconds, cur, prev)
		if !types.IsAddress(c.ClaimerAddress) {
			continue
		}
		user := types.NormalizeAddress(c.ClaimerAddress)
		switch {
		case cur.contains(c.TimestampSeconds):
			usersCur[user] = struct{}{}
		case prev.contains(c.TimestampSeconds):
			usersPrev[user] = struct{}{}
		}
	}
	for _, ts := range totals.FaucetFirstSeen {
		faucetCount.add(ts, cur, prev)
	}
	for _, ts := range totals.TxTimes {
		txCount.add(ts, cur, prev)
	}

	return types.DashboardSnapshot{
		TotalClaims:       len(claims),
		UniqueUsers:       UniqueUsers(claims),
		TotalFaucets:      totals.Faucets(),
		TotalTransactions: totals.Transactions(),
		MonthlyChange: map[string]string{
			types.MetricTotalClaims:       CalculateChange(claimCount.cur, claimCount.prev),
			types.MetricUniqueUsers:       CalculateChange(len(usersCur), len(usersPrev)),
			types.MetricTotalFaucets:      CalculateChange(faucetCount.cur, faucetCount.prev),
			types.MetricTotalTransactions: CalculateChange(txCount.cur, txCount.prev),
		},
		LastUpdated: now,
	}
}

// Snapshot reduces an aggregation result and carries its per-source outcomes onto the snapshot.
func Snapshot(res aggregate.Result, now time.Time, loc *time.Location) types.DashboardSnapshot {
	snap := Reduce(res.Claims, res.Totals(), now, loc)
	snap.Degraded = res.Degraded()
	snap.Sources = res.Statuses()
	return snap
}
