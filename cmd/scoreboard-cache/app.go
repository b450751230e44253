package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/scoreboard-cache/internal/config"
	"github.com/Sternrassler/scoreboard-cache/internal/server"
	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
	"github.com/Sternrassler/scoreboard-cache/pkg/cache/sqlstore"
	"github.com/Sternrassler/scoreboard-cache/pkg/client"
	"github.com/Sternrassler/scoreboard-cache/pkg/metrics"
	"github.com/Sternrassler/scoreboard-cache/pkg/pagination"
	"github.com/Sternrassler/scoreboard-cache/pkg/ratelimit"
)

// app holds the wired components of a running service.
type app struct {
	handler  http.Handler
	store    cache.Store
	lister   server.Lister
	resolver *dnscache.Resolver
	closers  []func() error
}

// newApp opens the configured backend and wires client and HTTP handler.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{resolver: &dnscache.Resolver{}}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	rdb, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
	}

	store, err := a.openStore(cfg, rdb, logger)
	if err != nil {
		return nil, err
	}
	a.store = store

	clientCfg := client.DefaultConfig(store, cfg.Upstream.APIKey)
	clientCfg.BaseURL = cfg.Upstream.BaseURL
	clientCfg.UserAgent = cfg.Upstream.UserAgent
	clientCfg.Timeout = cfg.Upstream.Timeout
	clientCfg.MaxRetries = cfg.Upstream.MaxRetries
	clientCfg.InitialBackoff = cfg.Upstream.InitialBackoff
	clientCfg.MaxBackoff = cfg.Upstream.MaxBackoff
	clientCfg.Resolver = a.resolver
	if rdb != nil {
		clientCfg.Tracker = ratelimit.NewTracker(rdb, logger.With().Str("component", "ratelimit").Logger())
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	a.closers = append(a.closers, apiClient.Close)

	pages := pagination.NewBatchFetcher(apiClient, pagination.Config{
		MaxConcurrency: cfg.Upstream.PageWorkers,
		Timeout:        cfg.Upstream.Timeout,
	})
	ready := func(ctx context.Context) error {
		return cache.Ping(ctx, store)
	}

	a.handler = server.New(server.Deps{
		Fetcher:        apiClient,
		Store:          store,
		Pages:          pages,
		Lister:         a.lister,
		ReadyCheck:     ready,
		Logger:         logger,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	metrics.SetBuildInfo(version, cfg.Cache.Backend)
	ok = true
	return a, nil
}

// connectRedis returns nil when Redis is not configured, or when it is
// unreachable and only quota tracking depends on it.
func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn().Msg("Redis not configured - upstream quota tracking disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		if cfg.Cache.Backend == config.BackendRedis {
			return nil, cache.NewPersistenceError(cache.LayerRedis, "connect", err)
		}
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable - upstream quota tracking disabled")
		return nil, nil
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("Connected to Redis")
	return rdb, nil
}

func (a *app) openStore(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (cache.Store, error) {
	var durable cache.Store
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		s, err := sqlstore.New(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		a.lister = s
		durable = s
		logger.Info().Str("dsn", cfg.Database.DSN).Msg("SQLite cache opened")
	case config.BackendRedis:
		if rdb == nil {
			return nil, errors.New("redis backend selected but redis is not configured")
		}
		durable = cache.NewRedisStore(rdb)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	if cfg.Cache.MemorySize == 0 {
		return durable, nil
	}
	front, err := cache.NewExpiringMemoryStore(cfg.Cache.MemorySize, cfg.Cache.MemoryTTL)
	if err != nil {
		return nil, err
	}
	return cache.NewTiered(front, durable, logger.With().Str("component", "cache").Logger()), nil
}

// refreshDNS re-resolves cached hosts until ctx is done.
func (a *app) refreshDNS(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.resolver.Refresh(true)
		}
	}
}

// Close releases everything newApp opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
