package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

// entryCodec encodes entries stored as JSON documents.
var entryCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisStore keeps entries in Redis, one JSON document per cache key.
// Entries are written without expiry.
type RedisStore struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRedisStore creates a new store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		now:   time.Now,
	}
}

// Lookup retrieves the entry for (t, p).
func (s *RedisStore) Lookup(ctx context.Context, t CacheType, p Params) (*CacheEntry, bool, error) {
	key, err := NewKey(t, p)
	if err != nil {
		return nil, false, err
	}

	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(LayerRedis).Inc()
			return nil, false, nil
		}
		CacheErrors.WithLabelValues(LayerRedis, "lookup").Inc()
		return nil, false, NewPersistenceError(LayerRedis, "get", err)
	}

	var entry CacheEntry
	if err := entryCodec.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "lookup").Inc()
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(LayerRedis).Inc()
	return &entry, true, nil
}

// Store writes the entry for (t, p), replacing any previous one.
// SET is atomic, so a failed write leaves the prior value in place.
func (s *RedisStore) Store(ctx context.Context, t CacheType, p Params, body []byte) (*CacheEntry, error) {
	key, err := NewKey(t, p)
	if err != nil {
		return nil, err
	}

	entry := newEntry(key, body, s.now())
	data, err := entryCodec.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "store").Inc()
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, 0).Err(); err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "store").Inc()
		return nil, NewPersistenceError(LayerRedis, "set", err)
	}

	recordStore(LayerRedis, entry.Body)
	return entry, nil
}

// Delete removes the entry for (t, p).
func (s *RedisStore) Delete(ctx context.Context, t CacheType, p Params) error {
	key, err := NewKey(t, p)
	if err != nil {
		return err
	}

	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues(LayerRedis, "delete").Inc()
		return NewPersistenceError(LayerRedis, "del", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return NewPersistenceError(LayerRedis, "ping", err)
	}
	return nil
}
