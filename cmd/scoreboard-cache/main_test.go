package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/scoreboard-cache/internal/config"
	"github.com/Sternrassler/scoreboard-cache/internal/testutil"
	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
)

func testConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Upstream.APIKey = "test-key"
	cfg.Upstream.BaseURL = upstream
	cfg.Upstream.MaxRetries = 0
	cfg.Upstream.Timeout = 2 * time.Second
	cfg.Database.DSN = filepath.Join(t.TempDir(), "scoreboard.db")
	cfg.Redis.Addr = ""
	return cfg
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestNewApp_SQLite(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	a, err := newApp(context.Background(), testConfig(t, mock.URL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if _, ok := a.store.(*cache.Tiered); !ok {
		t.Errorf("store = %T, want memory tier over sqlite", a.store)
	}

	resp, body := get(t, a.handler, "/health")
	if resp.StatusCode != http.StatusOK || body != "OK" {
		t.Errorf("GET /health = %d %q", resp.StatusCode, body)
	}
	if resp, _ := get(t, a.handler, "/ready"); resp.StatusCode != http.StatusOK {
		t.Errorf("GET /ready = %d, want 200", resp.StatusCode)
	}

	resp, _ = get(t, a.handler, "/api/leagues")
	if resp.StatusCode != http.StatusOK || resp.Header.Get(cache.HeaderCacheStatus) != "MISS" {
		t.Fatalf("first GET = %d %s", resp.StatusCode, resp.Header.Get(cache.HeaderCacheStatus))
	}
	resp, _ = get(t, a.handler, "/api/leagues")
	if resp.Header.Get(cache.HeaderCacheStatus) != "HIT" {
		t.Errorf("second GET X-Cache = %q, want HIT", resp.Header.Get(cache.HeaderCacheStatus))
	}
	if n := mock.PathCount("/leagues"); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestNewApp_SurvivesRestart(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	cfg := testConfig(t, mock.URL())

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	get(t, a.handler, "/api/standings?league=39&season=2024")
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Same database file, fresh memory tier.
	a, err = newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() after restart error = %v", err)
	}
	defer a.Close()

	resp, _ := get(t, a.handler, "/api/standings?season=2024&league=39")
	if got := resp.Header.Get(cache.HeaderCacheStatus); got != "HIT" {
		t.Errorf("X-Cache after restart = %q, want HIT", got)
	}
	if n := mock.PathCount("/standings"); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestNewApp_NoMemoryTier(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Cache.MemorySize = 0

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if _, ok := a.store.(*cache.Tiered); ok {
		t.Error("memory tier enabled with memory_size 0")
	}
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	t.Run("sqlite backend runs without quota tracking", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Redis.Addr = "127.0.0.1:1"

		a, err := newApp(context.Background(), cfg, zerolog.Nop())
		if err != nil {
			t.Fatalf("newApp() error = %v", err)
		}
		a.Close()
	})

	t.Run("redis backend fails", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.Cache.Backend = config.BackendRedis
		cfg.Redis.Addr = "127.0.0.1:1"

		_, err := newApp(context.Background(), cfg, zerolog.Nop())
		if !errors.Is(err, cache.ErrPersistence) {
			t.Errorf("newApp() error = %v, want ErrPersistence", err)
		}
	})
}

func TestNewApp_BadDatabase(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Database.DSN = filepath.Join(t.TempDir(), "missing-dir", "scoreboard.db")

	_, err := newApp(context.Background(), cfg, zerolog.Nop())
	if !errors.Is(err, cache.ErrPersistence) {
		t.Errorf("newApp() error = %v, want ErrPersistence", err)
	}
}

func TestRefreshDNS_StopsOnCancel(t *testing.T) {
	a := &app{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.refreshDNS(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("refreshDNS() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("refreshDNS() did not return after cancel")
	}

	if err := a.refreshDNS(context.Background(), 0); err != nil {
		t.Errorf("refreshDNS(0) error = %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SCOREBOARD_UPSTREAM_API_KEY", "")

	err := run("")
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("run() error = %v, want api_key validation error", err)
	}
}
