package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testRetryConfig keeps backoffs short so the suite stays fast.
func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func serverErr() error {
	return &UpstreamError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_ForClass(t *testing.T) {
	base := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}

	tests := []struct {
		name            string
		errorClass      ErrorClass
		expectedInitial time.Duration
	}{
		{"server error config", ErrorClassServer, time.Second},
		{"network error config", ErrorClassNetwork, 2 * time.Second},
		{"rate limit config is capped", ErrorClassRateLimit, 3 * time.Second},
		{"unknown error class uses base", "", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base.ForClass(tt.errorClass)
			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxAttempts != base.MaxAttempts || config.MaxBackoff != base.MaxBackoff {
				t.Errorf("ForClass() changed attempts or cap: %+v", config)
			}
		})
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		if callCount < 3 {
			return serverErr()
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return serverErr()
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 500 {
		t.Errorf("Expected wrapped UpstreamError, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientErrorNoRetry(t *testing.T) {
	callCount := 0
	testErr := &UpstreamError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "Not Found"}
	err := retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return testErr
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for client errors), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted for client errors (no retry attempted)")
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_PlainErrorIsNetwork(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return errors.New("connection reset by peer")
	})

	if callCount != 3 {
		t.Errorf("Expected plain errors to be retried, got %d calls", callCount)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testRetryConfig()
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second

	callCount := 0
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		callCount++
		if callCount == 1 {
			// Cancel context after first failure
			cancel()
		}
		return serverErr()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call due to cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_CancellationNotRetried(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		callCount++
		return ErrContextCancelled
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	cfg := testRetryConfig()
	cfg.MaxAttempts = 0

	callCount := 0
	_ = retryWithBackoff(context.Background(), cfg, zerolog.Nop(), func() error {
		callCount++
		return serverErr()
	})
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	timestamps := []time.Time{}
	_ = retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		timestamps = append(timestamps, time.Now())
		return serverErr()
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	// First delay ~20ms, second ~40ms (jitter ±20%)
	firstDelay := timestamps[1].Sub(timestamps[0])
	secondDelay := timestamps[2].Sub(timestamps[1])

	if firstDelay < 16*time.Millisecond {
		t.Errorf("First retry delay %v below expected minimum 16ms", firstDelay)
	}
	if secondDelay < 32*time.Millisecond {
		t.Errorf("Second retry delay %v below expected minimum 32ms", secondDelay)
	}
}

func TestRetryWithBackoff_RateLimitLongerBackoff(t *testing.T) {
	timestamps := []time.Time{}
	_ = retryWithBackoff(context.Background(), testRetryConfig(), zerolog.Nop(), func() error {
		timestamps = append(timestamps, time.Now())
		return &UpstreamError{StatusCode: 429, ErrorClass: ErrorClassRateLimit}
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	// Rate limit backoff starts at 4x the base (80ms, jitter ±20%)
	firstDelay := timestamps[1].Sub(timestamps[0])
	if firstDelay < 64*time.Millisecond {
		t.Errorf("First rate limit retry delay %v below expected minimum 64ms", firstDelay)
	}
}

func TestJitter(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := jitter(d)
		if got < 80*time.Millisecond || got >= 120*time.Millisecond {
			t.Fatalf("jitter(%v) = %v outside [80ms, 120ms)", d, got)
		}
	}
}
