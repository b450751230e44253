package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "ParentBased"},
	}

	for _, tt := range tests {
		got := Sampler(tt.rate).Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("Sampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}

func TestSetupTracing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The gRPC exporter connects lazily, so no collector is needed.
	shutdown, err := SetupTracing(ctx, "localhost:4317", 0.5, "test")
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}

	_, span := Tracer("test").Start(ctx, "span")
	if !span.SpanContext().IsValid() {
		t.Error("span context is not valid after setup")
	}
	span.End()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer shutdownCancel()
	_ = shutdown(shutdownCtx)
}
