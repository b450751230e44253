package cache

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry represents the most recent upstream response stored for a key.
type CacheEntry struct {
	// ID is derived from the cache key (see CacheKey.ID)
	ID uuid.UUID `json:"id"`

	// Type is the cache type tag
	Type CacheType `json:"cache_type"`

	// Params are the normalized request parameters
	Params map[string]string `json:"params"`

	// Body is the raw upstream response body, never interpreted by the store
	Body []byte `json:"body"`

	// StoredAt is when the entry was last written
	StoredAt time.Time `json:"stored_at"`
}

// newEntry builds the entry a store writes for key.
func newEntry(key CacheKey, body []byte, now time.Time) *CacheEntry {
	if body == nil {
		body = []byte{}
	}
	return &CacheEntry{
		ID:       key.ID(),
		Type:     key.Type,
		Params:   key.Params.Map(),
		Body:     body,
		StoredAt: now.UTC(),
	}
}

// Age returns how long ago the entry was stored.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.StoredAt)
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Body = append([]byte(nil), e.Body...)
	c.Params = make(map[string]string, len(e.Params))
	for k, v := range e.Params {
		c.Params[k] = v
	}
	return &c
}
