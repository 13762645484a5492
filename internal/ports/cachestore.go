package ports

import (
	"context"
	"faucetdrops/internal/types"
	"time"

	"github.com/goccy/go-json"
)

// CacheStore is the remote durable cache shared by every service instance.
// Writes are upserts keyed by the cache key; a later Set fully replaces an earlier one.
type CacheStore interface {
	// Get returns the entry for key.
	// MUST return types.ErrNotFound when the key is absent or its entry has expired.
	Get(ctx context.Context, key string) (*types.CacheEntry, error)

	// Set stores data under key. A non-positive expiresIn stores an entry that never expires.
	Set(ctx context.Context, key string, data json.RawMessage, expiresIn time.Duration) error

	// Delete removes key and reports whether an entry existed.
	Delete(ctx context.Context, key string) (bool, error)
}
