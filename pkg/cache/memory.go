package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// DefaultMemorySize is the entry bound used when none is configured.
const DefaultMemorySize = 10_000

// MemoryStore is a process-local store backed by an otter W-TinyLFU cache.
// It is bounded by entry count; the least valuable keys are dropped when full.
type MemoryStore struct {
	cache *otter.Cache[string, *CacheEntry]
	now   func() time.Time

	// mu serializes conditional writes (see offer).
	mu sync.Mutex
	// gen counts invalidations. Guarded by mu.
	gen uint64
}

// NewMemoryStore creates an in-memory store holding at most maxSize entries.
func NewMemoryStore(maxSize int) (*MemoryStore, error) {
	return NewExpiringMemoryStore(maxSize, 0)
}

// NewExpiringMemoryStore is NewMemoryStore with entries dropped ttl after
// they were written. A ttl of zero keeps entries until evicted.
func NewExpiringMemoryStore(maxSize int, ttl time.Duration) (*MemoryStore, error) {
	if maxSize <= 0 {
		maxSize = DefaultMemorySize
	}
	if ttl < 0 {
		return nil, fmt.Errorf("memory cache ttl must be >= 0 (got %s)", ttl)
	}
	opts := &otter.Options[string, *CacheEntry]{
		MaximumSize: maxSize,
	}
	if ttl > 0 {
		opts.ExpiryCalculator = otter.ExpiryWriting[string, *CacheEntry](ttl)
	}
	c, err := otter.New[string, *CacheEntry](opts)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryStore{cache: c, now: time.Now}, nil
}

// Lookup retrieves the entry for (t, p). It never fails on a valid key.
func (m *MemoryStore) Lookup(_ context.Context, t CacheType, p Params) (*CacheEntry, bool, error) {
	key, err := NewKey(t, p)
	if err != nil {
		return nil, false, err
	}
	entry, ok := m.get(key)
	if !ok {
		CacheMisses.WithLabelValues(LayerMemory).Inc()
		return nil, false, nil
	}
	CacheHits.WithLabelValues(LayerMemory).Inc()
	return entry, true, nil
}

// Store writes the entry for (t, p), replacing any previous one.
func (m *MemoryStore) Store(_ context.Context, t CacheType, p Params, body []byte) (*CacheEntry, error) {
	key, err := NewKey(t, p)
	if err != nil {
		return nil, err
	}
	entry := newEntry(key, append([]byte(nil), body...), m.now())

	m.mu.Lock()
	m.cache.Set(key.String(), entry)
	m.mu.Unlock()

	recordStore(LayerMemory, entry.Body)
	return entry.Clone(), nil
}

// Delete removes the entry for (t, p).
func (m *MemoryStore) Delete(_ context.Context, t CacheType, p Params) error {
	key, err := NewKey(t, p)
	if err != nil {
		return err
	}
	m.invalidate(key)
	return nil
}

func (m *MemoryStore) get(key CacheKey) (*CacheEntry, bool) {
	entry, ok := m.cache.GetIfPresent(key.String())
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

func (m *MemoryStore) invalidate(key CacheKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.cache.Invalidate(key.String())
}

// generation returns the invalidation count. Pass it to offer to reject
// entries read before a later invalidation.
func (m *MemoryStore) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// offer installs entry unless the held entry was stored later. If any
// invalidation happened after gen was taken, the key is dropped instead.
// It reports whether entry was installed.
func (m *MemoryStore) offer(key CacheKey, entry *CacheEntry, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		m.cache.Invalidate(key.String())
		return false
	}
	if held, ok := m.cache.GetIfPresent(key.String()); ok && held.StoredAt.After(entry.StoredAt) {
		return false
	}
	m.cache.Set(key.String(), entry.Clone())
	return true
}
