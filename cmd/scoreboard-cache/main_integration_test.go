//go:build integration

package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/scoreboard-cache/internal/config"
	"github.com/Sternrassler/scoreboard-cache/internal/testutil"
	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
	"github.com/Sternrassler/scoreboard-cache/pkg/ratelimit"
)

func setupTestRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	return host + ":" + port.Port()
}

func TestNewApp_RedisBackend(t *testing.T) {
	addr := setupTestRedis(t)
	mock := testutil.NewMockAPI()
	defer mock.Close()

	cfg := testConfig(t, mock.URL())
	cfg.Cache.Backend = config.BackendRedis
	cfg.Redis.Addr = addr

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	resp, _ := get(t, a.handler, "/api/fixtures-by-date?date=2024-08-17")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	// Entry persisted in Redis without expiry.
	key, _ := cache.NewKey(cache.TypeFixturesByDate, cache.Params{"date": "2024-08-17"})
	ttl, err := rdb.TTL(context.Background(), key.String()).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl != -1 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}

	// Quota headers from the mock were recorded by the tracker.
	state, err := ratelimit.NewTracker(rdb, zerolog.Nop()).GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.MinuteRemaining != 29 || state.DailyRemaining != 7400 {
		t.Errorf("state = %+v, want minute 29 daily 7400", state)
	}

	// Ready reflects Redis availability.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cache.Ping(ctx, a.store); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
