package redis

import (
	"context"
	"errors"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/types"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyNameTemplate = "_fd_cache_%s"
)

// CacheStore implements ports.CacheStore with one hash per cache key. Redis expiry removes the hash once the
// entry expires; the expires_at field is checked as well so clock skew never serves a stale row.
type CacheStore struct {
	cli *redis.Client
	now func() time.Time
}

func NewCacheStore(cli *redis.Client) *CacheStore {
	return &CacheStore{cli: cli, now: time.Now}
}

func (s *CacheStore) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	m, err := s.cli.HGetAll(ctx, getCacheKeyName(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, types.ErrNotFound
		}
		return nil, types.Err(types.ErrDataStoreAccess, err, "")
	}
	if len(m) == 0 {
		return nil, types.ErrNotFound
	}
	data, err := cache.DecodePayload(m["data"])
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "key %s", key)
	}
	updated, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}
	expires, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}
	entry := &types.CacheEntry{
		Key:       key,
		Data:      data,
		UpdatedAt: time.UnixMilli(updated),
	}
	if expires > 0 {
		entry.ExpiresAt = time.UnixMilli(expires)
	}
	if entry.Expired(s.now()) {
		return nil, types.ErrNotFound
	}
	return entry, nil
}

// Set replaces the hash atomically so a reader never observes a half-written entry.
func (s *CacheStore) Set(ctx context.Context, key string, data json.RawMessage, expiresIn time.Duration) error {
	now := s.now()
	var expiresAt int64
	if expiresIn > 0 {
		expiresAt = now.Add(expiresIn).UnixMilli()
	}
	name := getCacheKeyName(key)
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, name)
		pipe.HSet(ctx, name, map[string]any{
			"data":       cache.EncodePayload(data),
			"updated_at": now.UnixMilli(),
			"expires_at": expiresAt,
		})
		if expiresIn > 0 {
			pipe.PExpire(ctx, name, expiresIn)
		}
		return nil
	})
	if err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "set %s", key)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.cli.Del(ctx, getCacheKeyName(key)).Result()
	if err != nil {
		return false, types.Err(types.ErrDataStoreAccess, err, "delete %s", key)
	}
	return n > 0, nil
}

func getCacheKeyName(key string) string {
	return fmt.Sprintf(cacheKeyNameTemplate, key)
}
