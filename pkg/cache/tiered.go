package cache

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Sternrassler/scoreboard-cache/pkg/cache"

// Tiered serves lookups from a memory tier in front of a durable store.
// The durable store stays authoritative: writes reach it first and the
// memory tier only ever holds copies of entries it returned. When the
// durable store is shared between processes, writes from other processes
// become visible once the memory tier's TTL has passed.
type Tiered struct {
	front  *MemoryStore
	back   Store
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewTiered layers front over back.
func NewTiered(front *MemoryStore, back Store, logger zerolog.Logger) *Tiered {
	if front == nil || back == nil {
		panic("tiered store needs both tiers")
	}
	return &Tiered{
		front:  front,
		back:   back,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Lookup checks the memory tier, then the durable tier. Durable hits are
// copied into the memory tier.
func (s *Tiered) Lookup(ctx context.Context, t CacheType, p Params) (*CacheEntry, bool, error) {
	key, err := NewKey(t, p)
	if err != nil {
		return nil, false, err
	}

	ctx, span := s.tracer.Start(ctx, "cache.lookup", trace.WithAttributes(
		attribute.String("cache.type", string(t)),
		attribute.String("cache.key", key.Params.Canonical()),
	))
	defer span.End()

	if entry, ok := s.front.get(key); ok {
		CacheHits.WithLabelValues(LayerMemory).Inc()
		span.SetAttributes(attribute.String("cache.layer", LayerMemory))
		s.logger.Debug().Str("key", key.String()).Msg("Memory tier hit")
		return entry, true, nil
	}
	CacheMisses.WithLabelValues(LayerMemory).Inc()

	gen := s.front.generation()
	entry, ok, err := s.back.Lookup(ctx, t, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "durable lookup failed")
		return nil, false, err
	}
	if !ok {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, false, nil
	}

	if !s.front.offer(key, entry, gen) {
		s.logger.Debug().Str("key", key.String()).Msg("Memory tier skipped entry invalidated during lookup")
	}
	span.SetAttributes(attribute.String("cache.layer", "durable"))
	return entry, true, nil
}

// Store writes the durable tier and, once that succeeded, the memory tier.
func (s *Tiered) Store(ctx context.Context, t CacheType, p Params, body []byte) (*CacheEntry, error) {
	key, err := NewKey(t, p)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "cache.store", trace.WithAttributes(
		attribute.String("cache.type", string(t)),
		attribute.String("cache.key", key.Params.Canonical()),
		attribute.Int("cache.body_bytes", len(body)),
	))
	defer span.End()

	gen := s.front.generation()
	entry, err := s.back.Store(ctx, t, p, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "durable store failed")
		return nil, err
	}

	if !s.front.offer(key, entry, gen) {
		s.logger.Debug().Str("key", key.String()).Msg("Memory tier skipped stale entry")
	}
	return entry, nil
}

// Delete removes the key from both tiers.
func (s *Tiered) Delete(ctx context.Context, t CacheType, p Params) error {
	key, err := NewKey(t, p)
	if err != nil {
		return err
	}
	if err := s.back.Delete(ctx, t, p); err != nil {
		return err
	}
	s.front.invalidate(key)
	return nil
}

// Ping checks the durable tier.
func (s *Tiered) Ping(ctx context.Context) error {
	return Ping(ctx, s.back)
}
