package metrics

import (
	"faucetdrops/internal/aggregate"
	"faucetdrops/internal/types"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userA = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	userB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestCalculateChange(t *testing.T) {
	cases := []struct {
		cur, prev int
		want      string
	}{
		{0, 0, "+0.0%"},
		{5, 0, "+∞%"},
		{50, 100, "-50.0%"},
		{150, 100, "+50.0%"},
		{100, 100, "+0.0%"},
		{0, 3, "-100.0%"},
		{1, 3, "-66.7%"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CalculateChange(c.cur, c.prev), "%d vs %d", c.cur, c.prev)
	}
}

func TestUniqueUsersIgnoresCaseAndMalformed(t *testing.T) {
	claims := []types.ClaimRecord{
		{ClaimerAddress: userA},
		{ClaimerAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{ClaimerAddress: "not-an-address"},
	}
	snap := Reduce(claims, aggregate.Totals{}, time.Now(), time.UTC)
	assert.Equal(t, 1, snap.UniqueUsers)
	assert.Equal(t, 3, snap.TotalClaims)
}

func TestReduceMonthlyChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, loc)
	ts := func(y int, m time.Month, d, h int) int64 {
		return time.Date(y, m, d, h, 0, 0, 0, loc).Unix()
	}

	claims := []types.ClaimRecord{
		{ClaimerAddress: userA, FaucetAddress: "0xf1", TimestampSeconds: ts(2024, time.March, 1, 0)},
		{ClaimerAddress: userA, FaucetAddress: "0xf1", TimestampSeconds: ts(2024, time.March, 10, 8)},
		{ClaimerAddress: userB, FaucetAddress: "0xf1", TimestampSeconds: ts(2024, time.February, 29, 23)},
		{ClaimerAddress: userB, FaucetAddress: "0xf2", TimestampSeconds: ts(2024, time.February, 2, 1)},
		// outside both windows
		{ClaimerAddress: userB, FaucetAddress: "0xf2", TimestampSeconds: ts(2024, time.January, 31, 23)},
	}
	totals := aggregate.Totals{
		FaucetFirstSeen: map[string]int64{
			"0xf1": ts(2024, time.March, 1, 0),
			"0xf2": ts(2024, time.January, 31, 23),
		},
		TxTimes: []int64{ts(2024, time.March, 2, 0), ts(2024, time.February, 3, 0), ts(2024, time.February, 4, 0)},
	}

	snap := Reduce(claims, totals, now, loc)
	assert.Equal(t, 5, snap.TotalClaims)
	assert.Equal(t, 2, snap.UniqueUsers)
	assert.Equal(t, 2, snap.TotalFaucets)
	assert.Equal(t, 3, snap.TotalTransactions)
	assert.Equal(t, "+0.0%", snap.MonthlyChange[types.MetricTotalClaims])
	assert.Equal(t, "+0.0%", snap.MonthlyChange[types.MetricUniqueUsers])
	assert.Equal(t, "+∞%", snap.MonthlyChange[types.MetricTotalFaucets])
	assert.Equal(t, "-50.0%", snap.MonthlyChange[types.MetricTotalTransactions])
	assert.Equal(t, now, snap.LastUpdated)
}

func TestMonthBoundaryDependsOnLocation(t *testing.T) {
	// 2024-03-01 02:00 UTC is still February in New York.
	instant := time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC)
	claims := []types.ClaimRecord{{ClaimerAddress: userA, TimestampSeconds: instant.Unix()}}
	now := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

	utc := Reduce(claims, aggregate.Totals{}, now, time.UTC)
	assert.Equal(t, "+∞%", utc.MonthlyChange[types.MetricTotalClaims])

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := Reduce(claims, aggregate.Totals{}, now, ny)
	assert.Equal(t, "-100.0%", local.MonthlyChange[types.MetricTotalClaims])
}

func TestSnapshotCarriesSourceOutcomes(t *testing.T) {
	res := aggregate.Result{
		Claims: []types.ClaimRecord{{ClaimerAddress: userA, TimestampSeconds: 1}},
		Sources: []aggregate.SourceResult{
			{Network: "celo", Origin: types.OriginStorage, Records: []types.ClaimRecord{{}}},
			{Network: "base", Origin: types.OriginFactory, Address: "0xfac", Err: types.ErrUpstream},
		},
	}
	snap := Snapshot(res, time.Now(), time.UTC)
	assert.True(t, snap.Degraded)
	require.Len(t, snap.Sources, 2)
	assert.Equal(t, 1, snap.Sources[0].Records)
	assert.NotEmpty(t, snap.Sources[1].Error)
}
