package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
	"github.com/Sternrassler/scoreboard-cache/pkg/cache/cachetest"
)

// setupTestRedis creates a test Redis client for testing.
// Tests are skipped when no Redis listens on localhost; container-backed
// runs live in tests/integration.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	cache.NewRedisStore(nil)
}

func TestRedisStore_Contract(t *testing.T) {
	cachetest.Run(t, func(t *testing.T) cache.Store {
		return cache.NewRedisStore(setupTestRedis(t))
	})
}

func TestRedisStore_NoExpiry(t *testing.T) {
	client := setupTestRedis(t)
	store := cache.NewRedisStore(client)
	ctx := context.Background()
	p := cache.Params{"league": 39, "season": 2024}

	if _, err := store.Store(ctx, cache.TypeStandings, p, []byte("{}")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	key, _ := cache.NewKey(cache.TypeStandings, p)
	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	// -1 means the key exists without expiry
	if ttl != -1 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}
}

func TestRedisStore_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	store := cache.NewRedisStore(client)
	ctx := context.Background()

	key, _ := cache.NewKey(cache.TypeLeagues, nil)
	if err := client.Set(ctx, key.String(), "not json", 0).Err(); err != nil {
		t.Fatal(err)
	}

	_, _, err := store.Lookup(ctx, cache.TypeLeagues, nil)
	if !errors.Is(err, cache.ErrInvalidEntry) {
		t.Errorf("Lookup() error = %v, want ErrInvalidEntry", err)
	}
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := cache.NewRedisStore(client)
	ctx := context.Background()

	_, err := store.Store(ctx, cache.TypeStandings, cache.Params{"league": 39}, []byte("x"))
	if !errors.Is(err, cache.ErrPersistence) {
		t.Errorf("Store() error = %v, want ErrPersistence", err)
	}

	_, ok, err := store.Lookup(ctx, cache.TypeStandings, cache.Params{"league": 39})
	if ok || !errors.Is(err, cache.ErrPersistence) {
		t.Errorf("Lookup() = (%v, %v), want ErrPersistence", ok, err)
	}

	if err := store.Ping(ctx); !errors.Is(err, cache.ErrPersistence) {
		t.Errorf("Ping() error = %v, want ErrPersistence", err)
	}
}
