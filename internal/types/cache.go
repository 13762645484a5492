package types

import (
	"time"

	"github.com/goccy/go-json"
)

// CacheEntry is one row of the remote durable cache. A zero ExpiresAt means the entry never expires.
type CacheEntry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// ExpiryFrom returns the absolute expiry for a relative duration. A non-positive duration means never.
func ExpiryFrom(now time.Time, expiresIn time.Duration) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(expiresIn)
}
