package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	minuteRemainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scoreboard_upstream_minute_remaining",
		Help: "Requests remaining in the current per-minute upstream window",
	})

	dailyRemainingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scoreboard_upstream_daily_remaining",
		Help: "Requests remaining in the daily upstream quota",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoreboard_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to an exhausted quota",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoreboard_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to a low quota",
	})
)

// DefaultThrottleDelay is how long a request waits in the warning state.
const DefaultThrottleDelay = time.Second

// Tracker monitors the upstream quota and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
	now           func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		now:           time.Now,
	}
}

// GetState retrieves the current rate limit state from Redis.
// Returns a default healthy state if no data exists in Redis.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyMinuteRemaining, RedisKeyDailyRemaining, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	state := DefaultState(t.now())
	if vals[0] == nil && vals[1] == nil {
		t.logger.Debug().Msg("No rate limit state in Redis, returning default healthy state")
		return state, nil
	}

	if state.MinuteRemaining, err = parseStored(vals[0]); err != nil {
		return nil, fmt.Errorf("parse minute remaining: %w", err)
	}
	if state.DailyRemaining, err = parseStored(vals[1]); err != nil {
		return nil, fmt.Errorf("parse daily remaining: %w", err)
	}
	if s, ok := vals[2].(string); ok {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
			state.LastUpdate = time.UnixMilli(ts)
			state.ResetAt = state.LastUpdate.Add(MinuteWindow)
		}
	}
	state.UpdateHealth()

	return state, nil
}

// parseStored converts an MGET value; missing keys are Unknown.
func parseStored(v any) (int, error) {
	if v == nil {
		return Unknown, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	return strconv.Atoi(s)
}

// UpdateFromHeaders parses the quota headers and updates Redis state.
// Responses without quota headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	minuteStr := headers.Get(HeaderMinuteRemaining)
	dailyStr := headers.Get(HeaderDailyRemaining)
	if minuteStr == "" && dailyStr == "" {
		return nil
	}

	now := t.now()
	state := &RateLimitState{
		MinuteRemaining: Unknown,
		DailyRemaining:  Unknown,
		ResetAt:         now.Add(MinuteWindow),
		LastUpdate:      now,
	}

	pipe := t.redis.TxPipeline()
	if minuteStr != "" {
		minute, err := strconv.Atoi(minuteStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderMinuteRemaining, err)
		}
		state.MinuteRemaining = minute
		pipe.Set(ctx, RedisKeyMinuteRemaining, minute, MinuteWindow)
		minuteRemainingGauge.Set(float64(minute))
	}
	if dailyStr != "" {
		daily, err := strconv.Atoi(dailyStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderDailyRemaining, err)
		}
		state.DailyRemaining = daily
		pipe.Set(ctx, RedisKeyDailyRemaining, daily, DailyWindow)
		dailyRemainingGauge.Set(float64(daily))
	}
	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), DailyWindow)
	state.UpdateHealth()

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("minute_remaining", state.MinuteRemaining).
			Int("daily_remaining", state.DailyRemaining).
			Msg("Upstream quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("minute_remaining", state.MinuteRemaining).
			Msg("Upstream quota WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("minute_remaining", state.MinuteRemaining).
			Int("daily_remaining", state.DailyRemaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Upstream quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks if a request should be allowed based on the current quota.
// Returns false if the request should be blocked.
// Returns true but may wait for throttling if in warning state.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("minute_remaining", state.MinuteRemaining).
			Int("daily_remaining", state.DailyRemaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream quota exhausted - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("minute_remaining", state.MinuteRemaining).
			Msg("Upstream quota low - throttling request")

		rateLimitThrottlesTotal.Inc()
		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// Reset clears the stored state.
func (t *Tracker) Reset(ctx context.Context) error {
	err := t.redis.Del(ctx, RedisKeyMinuteRemaining, RedisKeyDailyRemaining, RedisKeyLastUpdate).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reset rate limit state: %w", err)
	}
	return nil
}
