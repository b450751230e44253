//go:build integration

package ratelimit

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()

	// Two instances share one Redis: a quota seen by one gates the other.
	first := NewTracker(redisClient, logger)
	second := NewTracker(redisClient, logger)

	state, err := second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsHealthy {
		t.Errorf("initial state = %+v, want healthy", state)
	}

	if err := first.UpdateFromHeaders(ctx, quotaHeaders("0", "6500")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := second.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("second tracker allowed a request after the quota was exhausted")
	}

	state, err = second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.DailyRemaining != 6500 {
		t.Errorf("DailyRemaining = %d, want 6500", state.DailyRemaining)
	}
	if state.LastUpdate.IsZero() || state.TimeUntilReset() == 0 {
		t.Errorf("state timing = %+v, want a pending reset", state)
	}
}

func TestTracker_Integration_ConcurrentUpdates(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, remaining := range []string{"29", "28", "27", "26", "25"} {
		wg.Add(1)
		go func(remaining string) {
			defer wg.Done()
			if err := tracker.UpdateFromHeaders(ctx, quotaHeaders(remaining, "7000")); err != nil {
				t.Errorf("UpdateFromHeaders() error = %v", err)
			}
		}(remaining)
	}
	wg.Wait()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.MinuteRemaining < 25 || state.MinuteRemaining > 29 {
		t.Errorf("MinuteRemaining = %d, want one of the written values", state.MinuteRemaining)
	}
	if !state.IsHealthy {
		t.Errorf("state = %+v, want healthy", state)
	}
}
