// Package server exposes the response cache over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
	"github.com/Sternrassler/scoreboard-cache/pkg/metrics"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Fetcher answers requests from the cache, going upstream on a miss.
// *client.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, t cache.CacheType, p cache.Params) (*cache.CacheEntry, bool, error)
	Refresh(ctx context.Context, t cache.CacheType, p cache.Params) (*cache.CacheEntry, error)
}

// PageCollector fetches every page of a paginated cache type.
// *pagination.BatchFetcher implements it.
type PageCollector interface {
	FetchAllPages(ctx context.Context, t cache.CacheType, p cache.Params) (map[int][]byte, error)
}

// Lister enumerates stored entries of one cache type, newest first.
// *sqlstore.Store implements it.
type Lister interface {
	ListByType(ctx context.Context, t cache.CacheType, limit int) ([]*cache.CacheEntry, error)
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Fetcher        Fetcher
	Store          cache.Store   // DELETE target
	Pages          PageCollector // nil = no /pages route
	Lister         Lister        // nil = no /entries route
	ReadyCheck     ReadyChecker  // nil = always ready (for tests)
	Logger         zerolog.Logger
	RequestTimeout time.Duration // 0 = no per-request deadline
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(deps.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(accessLog))

	// System endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/{cacheType}", func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(middleware.Timeout(deps.RequestTimeout))
		}
		r.Get("/", s.handleGet)
		r.Delete("/", s.handleDelete)
		r.Post("/refresh", s.handleRefresh)
		if deps.Pages != nil {
			r.Get("/pages", s.handlePages)
		}
		if deps.Lister != nil {
			r.Get("/entries", s.handleList)
		}
	})

	return r
}

type server struct {
	deps Deps
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	level := zerolog.InfoLevel
	switch {
	case status >= 500:
		level = zerolog.ErrorLevel
	case status >= 400:
		level = zerolog.WarnLevel
	case r.URL.Path == "/health" || r.URL.Path == "/metrics":
		level = zerolog.DebugLevel
	}
	hlog.FromRequest(r).WithLevel(level).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
