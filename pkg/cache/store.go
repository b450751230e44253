package cache

import (
	"context"
)

// Store is a keyed response cache. Implementations must be safe for
// concurrent use; concurrent writes to one key resolve last-write-wins.
type Store interface {
	// Lookup returns the entry stored for (t, p). A miss is (nil, false, nil).
	Lookup(ctx context.Context, t CacheType, p Params) (*CacheEntry, bool, error)

	// Store inserts or overwrites the entry for (t, p) and returns it.
	// On failure the prior entry, if any, is left untouched.
	Store(ctx context.Context, t CacheType, p Params, body []byte) (*CacheEntry, error)

	// Delete removes the entry for (t, p). Deleting a missing key is not an error.
	Delete(ctx context.Context, t CacheType, p Params) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it implements Pinger and reports success otherwise.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
