package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/scoreboard-cache/internal/config"
	"github.com/Sternrassler/scoreboard-cache/internal/telemetry"
	"github.com/Sternrassler/scoreboard-cache/pkg/logging"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Logging.Level),
		Pretty:  cfg.Logging.Pretty,
		Service: telemetry.ServiceName,
		Output:  os.Stderr,
	})
	logger.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr).
		Str("backend", cfg.Cache.Backend).
		Int("memory_size", cfg.Cache.MemorySize).
		Dur("memory_ttl", cfg.Cache.MemoryTTL).
		Msg("Starting scoreboard cache")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.SampleRate, version)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Tracing shutdown failed")
			}
		}()
		logger.Info().Str("endpoint", cfg.Telemetry.Endpoint).Float64("sample_rate", cfg.Telemetry.SampleRate).Msg("Tracing enabled")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("Shutdown cleanup failed")
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("Scoreboard cache ready")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.refreshDNS(gctx, cfg.Upstream.DNSRefresh)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Scoreboard cache stopped")
	return nil
}
