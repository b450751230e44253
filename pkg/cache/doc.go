// Package cache stores the latest football-data API response per request.
//
// An entry is keyed by a cache type (which upstream query class it answers)
// and the normalized request parameters:
//
//   - keys are sorted lexicographically
//   - values are coerced to canonical text (39, "39" and 39.0 are equal)
//   - nil values are dropped
//
// so logically identical requests built in any order share one entry.
// Every write replaces the previous payload (last-write-wins); the durable
// record never expires.
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redisClient)
//
//	params := cache.Params{"league": 39, "season": 2024}
//	entry, ok, err := store.Lookup(ctx, cache.TypeStandings, params)
//	if err != nil {
//		return err // backend unreachable
//	}
//	if !ok {
//		// Miss - fetch from the upstream API, then:
//		entry, err = store.Store(ctx, cache.TypeStandings, params, body)
//	}
//
// # Backends
//
//   - RedisStore: one JSON document per key, written without expiry
//   - sqlstore.Store: SQLite table with a unique (type, params) index
//   - MemoryStore: bounded process-local otter cache
//   - Tiered: MemoryStore in front of a durable store
//
// Storage failures are reported as *PersistenceError and match
// ErrPersistence. A miss is never an error.
//
// # Metrics
//
//   - scoreboard_cache_hits_total{layer}
//   - scoreboard_cache_misses_total{layer}
//   - scoreboard_cache_stores_total{layer}
//   - scoreboard_cache_errors_total{layer,operation}
//   - scoreboard_cache_body_bytes{layer}
package cache
