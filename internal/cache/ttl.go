package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTL is an in-process TTL cache in front of the remote cache.
// Expiration is lazy: expired entries read as absent but stay in the map until overwritten or deleted.
// A non-positive TTL stores an entry that never expires.
type TTL[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]entry[V]
	clock clockwork.Clock
}

type entry[V any] struct {
	val     V
	exp     time.Time // zero means never
	updated time.Time
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return NewTTLWithClock[K, V](clockwork.NewRealClock())
}

func NewTTLWithClock[K comparable, V any](clock clockwork.Clock) *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V]), clock: clock}
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// Get returns the value and true if found and not expired; otherwise zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	t.mu.RUnlock()
	if !ok || e.expired(t.clock.Now()) {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	t.SetAt(k, v, ttl, t.clock.Now())
}

// SetAt is Set for a value last written at updated, which Age then reports from. The TTL still counts from now.
func (t *TTL[K, V]) SetAt(k K, v V, ttl time.Duration, updated time.Time) {
	now := t.clock.Now()
	if updated.IsZero() || updated.After(now) {
		updated = now
	}
	e := entry[V]{val: v, updated: updated}
	if ttl > 0 {
		e.exp = now.Add(ttl)
	}
	t.mu.Lock()
	t.data[k] = e
	t.mu.Unlock()
}

func (t *TTL[K, V]) Delete(k K) {
	t.mu.Lock()
	delete(t.data, k)
	t.mu.Unlock()
}

// IsExpired is true when the key is absent or past its expiry.
func (t *TTL[K, V]) IsExpired(k K) bool {
	t.mu.RLock()
	e, ok := t.data[k]
	t.mu.RUnlock()
	return !ok || e.expired(t.clock.Now())
}

// Age returns the time since the key was last written. Expired entries still report an age.
func (t *TTL[K, V]) Age(k K) (time.Duration, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	t.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return t.clock.Since(e.updated), true
}

func (t *TTL[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}
