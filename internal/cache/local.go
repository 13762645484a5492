package cache

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Local keeps JSON-encoded values so cached aggregates are never shared and mutated in place.
// Encoding and decoding failures are logged and read as misses.
type Local struct {
	ttl *TTL[string, json.RawMessage]
}

func NewLocal(clock clockwork.Clock) *Local {
	return &Local{ttl: NewTTLWithClock[string, json.RawMessage](clock)}
}

// GetJSON decodes the cached value for key into out. It returns false on miss, expiry or decode error.
func (l *Local) GetJSON(key string, out any) bool {
	raw, ok := l.ttl.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.WithError(err).WithField("key", key).Warn("local cache entry undecodable, treating as miss")
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key. It reports whether the value was stored.
func (l *Local) SetJSON(key string, v any, ttl time.Duration) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("local cache encode failed")
		return false
	}
	l.ttl.Set(key, raw, ttl)
	return true
}

// SetRaw stores an already-encoded value.
func (l *Local) SetRaw(key string, raw json.RawMessage, ttl time.Duration) {
	l.ttl.Set(key, raw, ttl)
}

// SetRawAt stores an already-encoded value that was produced at updated, e.g. one copied from the remote layer.
func (l *Local) SetRawAt(key string, raw json.RawMessage, ttl time.Duration, updated time.Time) {
	l.ttl.SetAt(key, raw, ttl, updated)
}

func (l *Local) Delete(key string)                    { l.ttl.Delete(key) }
func (l *Local) IsExpired(key string) bool            { return l.ttl.IsExpired(key) }
func (l *Local) Age(key string) (time.Duration, bool) { return l.ttl.Age(key) }
