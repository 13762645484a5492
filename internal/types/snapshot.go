package types

import "time"

// Tracked metric names used as keys in DashboardSnapshot.MonthlyChange.
const (
	MetricTotalClaims       = "totalClaims"
	MetricUniqueUsers       = "uniqueUsers"
	MetricTotalFaucets      = "totalFaucets"
	MetricTotalTransactions = "totalTransactions"
)

// DashboardSnapshot is the summary served to dashboard consumers.
// Degraded is set when at least one upstream slice failed; Sources lists every slice outcome.
type DashboardSnapshot struct {
	TotalClaims       int               `json:"totalClaims"`
	UniqueUsers       int               `json:"uniqueUsers"`
	TotalFaucets      int               `json:"totalFaucets"`
	TotalTransactions int               `json:"totalTransactions"`
	MonthlyChange     map[string]string `json:"monthlyChange"`
	LastUpdated       time.Time         `json:"lastUpdated"`
	Degraded          bool              `json:"degraded"`
	Sources           []SourceStatus    `json:"sources,omitempty"`
}

// SourceStatus is the outcome of fetching one upstream slice.
type SourceStatus struct {
	Network string       `json:"network"`
	Origin  SourceOrigin `json:"origin"`
	Address string       `json:"address,omitempty"`
	Records int          `json:"records"`
	Error   string       `json:"error,omitempty"`
}

// EmptySnapshot is the zeroed snapshot served when nothing could be computed.
func EmptySnapshot(now time.Time) DashboardSnapshot {
	return DashboardSnapshot{
		MonthlyChange: map[string]string{
			MetricTotalClaims:       "+0.0%",
			MetricUniqueUsers:       "+0.0%",
			MetricTotalFaucets:      "+0.0%",
			MetricTotalTransactions: "+0.0%",
		},
		LastUpdated: now,
		Degraded:    true,
	}
}
