package ddb

import (
	"context"
	"faucetdrops/internal/cache"
	"faucetdrops/internal/types"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"
)

// CacheStore implements ports.CacheStore with one item per cache key.
// The ttl attribute lets DynamoDB TTL reap expired rows; reads check expires_at since TTL deletion lags.
type CacheStore struct {
	table string
	cli   *dynamodb.Client
	now   func() time.Time
}

type cacheItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	CacheKey  string `dynamodbav:"cache_key"`
	Data      string `dynamodbav:"data"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
}

func NewCacheStore(table string, cli *dynamodb.Client) *CacheStore {
	createTableIfNotExists(cli, table)
	return &CacheStore{table: table, cli: cli, now: time.Now}
}

func (s *CacheStore) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key:            keyOf(pkCache(key), skEntry()),
	})
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "get %s", key)
	}
	if out.Item == nil {
		return nil, types.ErrNotFound
	}
	var it cacheItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	data, err := cache.DecodePayload(it.Data)
	if err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "key %s", key)
	}
	entry := &types.CacheEntry{
		Key:       key,
		Data:      data,
		UpdatedAt: time.UnixMilli(it.UpdatedAt),
	}
	if it.ExpiresAt > 0 {
		entry.ExpiresAt = time.UnixMilli(it.ExpiresAt)
	}
	if entry.Expired(s.now()) {
		return nil, types.ErrNotFound
	}
	return entry, nil
}

// Set is an unconditional PutItem, which replaces any existing item with the same key.
func (s *CacheStore) Set(ctx context.Context, key string, data json.RawMessage, expiresIn time.Duration) error {
	now := s.now()
	it := cacheItem{
		PK:        pkCache(key),
		SK:        skEntry(),
		CacheKey:  key,
		Data:      cache.EncodePayload(data),
		UpdatedAt: now.UnixMilli(),
	}
	if expiresIn > 0 {
		exp := now.Add(expiresIn)
		it.ExpiresAt = exp.UnixMilli()
		it.TTL = exp.Add(time.Minute).Unix() // grace so the reaper never beats the read check
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      av,
	})
	if err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "set %s", key)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) (bool, error) {
	out, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    &s.table,
		Key:          keyOf(pkCache(key), skEntry()),
		ReturnValues: ddbTypes.ReturnValueAllOld,
	})
	if err != nil {
		return false, types.Err(types.ErrDataStoreAccess, err, "delete %s", key)
	}
	return len(out.Attributes) > 0, nil
}
