// Package client fetches football-data API responses through the response
// cache: lookup, upstream fetch with retries on a miss, then store.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
	"github.com/Sternrassler/scoreboard-cache/pkg/logging"
)

const (
	// DefaultBaseURL is the API-Football v3 endpoint.
	DefaultBaseURL = "https://v3.football.api-sports.io"

	// HeaderAPIKey carries the API key on every upstream request.
	HeaderAPIKey = "x-apisports-key"

	tracerName = "github.com/Sternrassler/scoreboard-cache/pkg/client"
)

// RateLimiter gates upstream requests on the shared quota state.
// *ratelimit.Tracker implements it.
type RateLimiter interface {
	ShouldAllowRequest(ctx context.Context) (bool, error)
	UpdateFromHeaders(ctx context.Context, headers http.Header) error
}

// Client is the cache-aware football-data API client.
type Client struct {
	httpClient *http.Client
	store      cache.Store
	tracker    RateLimiter
	config     Config
	retry      RetryConfig
	flight     singleflight.Group
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Config holds the client configuration.
type Config struct {
	// Store receives every successful upstream response (REQUIRED)
	Store cache.Store

	// Tracker gates requests on the upstream quota; nil disables gating
	Tracker RateLimiter

	// BaseURL of the football-data API (default: DefaultBaseURL)
	BaseURL string

	// APIKey sent in the x-apisports-key header (REQUIRED)
	APIKey string

	// UserAgent header sent upstream
	UserAgent string

	// Timeout per upstream attempt
	Timeout time.Duration

	// Retry
	MaxRetries     int // retries after the first attempt
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// HTTPClient overrides the default client (Timeout and Resolver are ignored)
	HTTPClient *http.Client

	// Resolver enables DNS caching on the default transport
	Resolver *dnscache.Resolver
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(store cache.Store, apiKey string) Config {
	retry := DefaultRetryConfig()
	return Config{
		Store:          store,
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		UserAgent:      "scoreboard-cache/1.0",
		Timeout:        20 * time.Second,
		MaxRetries:     retry.MaxAttempts - 1,
		InitialBackoff: retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}
	if retry.MaxBackoff < retry.InitialBackoff {
		retry.MaxBackoff = retry.InitialBackoff
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewTransport(cfg.Resolver),
		}
	}

	return &Client{
		httpClient: httpClient,
		store:      cfg.Store,
		tracker:    cfg.Tracker,
		config:     cfg,
		retry:      retry,
		logger: logging.NewLogger("upstream-client"),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Store returns the cache store the client writes to.
func (c *Client) Store() cache.Store {
	return c.store
}

// Get returns the cached response for (t, p), fetching and storing it on a
// miss. hit reports whether the entry came from the cache.
func (c *Client) Get(ctx context.Context, t cache.CacheType, p cache.Params) (*cache.CacheEntry, bool, error) {
	if _, err := EndpointFor(t); err != nil {
		return nil, false, err
	}

	entry, ok, err := c.store.Lookup(ctx, t, p)
	if err != nil {
		c.logger.Error().Err(err).Str("cache_type", string(t)).Msg("Cache lookup failed")
		return nil, false, err
	}
	if ok {
		c.logger.Debug().
			Str("cache_type", string(t)).
			Dur("age", entry.Age()).
			Msg("Cache hit")
		return entry, true, nil
	}

	c.logger.Debug().Str("cache_type", string(t)).Msg("Cache miss")
	entry, err = c.Refresh(ctx, t, p)
	return entry, false, err
}

// Refresh fetches (t, p) upstream and stores the response, replacing any
// cached entry. Concurrent refreshes of one key share a single upstream call.
// The shared call outlives any one caller; each caller stops waiting when its
// own ctx is done.
func (c *Client) Refresh(ctx context.Context, t cache.CacheType, p cache.Params) (*cache.CacheEntry, error) {
	ep, err := EndpointFor(t)
	if err != nil {
		return nil, err
	}
	key, err := cache.NewKey(t, p)
	if err != nil {
		return nil, err
	}
	query, err := ep.Query(key.Params)
	if err != nil {
		return nil, err
	}

	ch := c.flight.DoChan(key.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()

		body, err := c.fetch(fctx, ep.Path, query)
		if err != nil {
			return nil, err
		}
		entry, err := c.store.Store(fctx, t, p, body)
		if err != nil {
			c.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to store upstream response")
			return nil, err
		}
		c.logger.Debug().
			Str("key", key.String()).
			Int("bytes", len(entry.Body)).
			Msg("Stored upstream response")
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case res := <-ch:
		if res.Shared {
			refreshShared.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.CacheEntry).Clone(), nil
	}
}

// refreshTimeout bounds a shared refresh: every attempt plus the longest
// backoff between them.
func (c *Client) refreshTimeout() time.Duration {
	n := time.Duration(c.retry.MaxAttempts)
	return n*c.config.Timeout + (n-1)*c.retry.MaxBackoff
}

// FetchPage returns one page of a paginated cache type together with the
// upstream's page count. Each page is cached as its own entry.
func (c *Client) FetchPage(ctx context.Context, t cache.CacheType, p cache.Params, page int) ([]byte, int, error) {
	ep, err := EndpointFor(t)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		return nil, 0, fmt.Errorf("invalid page %d", page)
	}
	if !ep.Paginated && page > 1 {
		return nil, 0, fmt.Errorf("cache type %q is not paginated", t)
	}

	pp := make(cache.Params, len(p)+1)
	for k, v := range p {
		pp[k] = v
	}
	if ep.Paginated {
		pp["page"] = page
	}

	entry, _, err := c.Get(ctx, t, pp)
	if err != nil {
		return nil, 0, err
	}

	total := int(gjson.GetBytes(entry.Body, "paging.total").Int())
	if total < 1 {
		total = 1
	}
	return entry.Body, total, nil
}

// fetch performs one logical upstream request, retrying transient failures.
func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "upstream.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("upstream.path", path)),
	)
	defer span.End()

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	if c.tracker != nil {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			span.RecordError(err)
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", path).Msg("Request blocked by rate limiter")
			upstreamRequestsTotal.WithLabelValues(path, "rate_limited").Inc()
			span.SetStatus(codes.Error, "rate limited")
			return nil, ErrRateLimited
		}
	}

	fullURL := c.config.BaseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	var body []byte
	err := retryWithBackoff(ctx, c.retry, c.logger.With().Str("endpoint", path).Logger(), func() error {
		var err error
		body, err = c.do(ctx, path, fullURL)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("upstream.body_bytes", len(body)))
	return body, nil
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, path, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(HeaderAPIKey, c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().Str("endpoint", path).Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
		c.logger.Error().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, &UpstreamError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}

	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	body, err := cache.ReadBody(resp)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}
	upstreamRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream request error")
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    abbreviate(body),
		}
	}

	if err := checkPayload(resp.StatusCode, body); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(classOf(err))).Inc()
		c.logger.Warn().Err(err).Str("endpoint", path).Msg("Upstream payload rejected")
		return nil, err
	}
	return body, nil
}

// checkPayload rejects bodies that are not JSON or that carry a non-empty
// "errors" member. The API answers quota violations with 200 and
// errors.rateLimit.
func checkPayload(status int, body []byte) error {
	if !gjson.ValidBytes(body) {
		return &UpstreamError{StatusCode: status, ErrorClass: ErrorClassServer, Message: "invalid JSON body"}
	}

	errs := gjson.GetBytes(body, "errors")
	if !nonEmpty(errs) {
		return nil
	}
	errClass := ErrorClassClient
	if errs.Get("rateLimit").Exists() || errs.Get("requests").Exists() {
		errClass = ErrorClassRateLimit
	}
	return &UpstreamError{StatusCode: status, ErrorClass: errClass, Message: abbreviate([]byte(errs.Raw))}
}

func nonEmpty(r gjson.Result) bool {
	switch {
	case !r.Exists():
		return false
	case r.IsArray():
		return len(r.Array()) > 0
	case r.IsObject():
		return len(r.Map()) > 0
	case r.Type == gjson.String:
		return r.Str != ""
	default:
		return r.Type == gjson.True
	}
}

func abbreviate(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

// Close releases idle upstream connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
