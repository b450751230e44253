// Package cachetest provides a behavioural test suite shared by every
// cache.Store implementation.
package cachetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) cache.Store

// Run exercises the lookup/store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("lookup miss is not an error", func(t *testing.T) {
		s := newStore(t)
		entry, ok, err := s.Lookup(context.Background(), cache.TypeStandings, cache.Params{"league": "1"})
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if ok || entry != nil {
			t.Errorf("Lookup() = (%v, %v), want miss", entry, ok)
		}
	})

	t.Run("store then lookup returns body", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		body := []byte(`{"response":[{"league":{"id":39}}]}`)

		stored, err := s.Store(ctx, cache.TypeStandings, cache.Params{"league": "39", "season": "2024"}, body)
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		if string(stored.Body) != string(body) {
			t.Errorf("Store() body = %s, want %s", stored.Body, body)
		}
		if stored.StoredAt.IsZero() {
			t.Error("Store() did not set StoredAt")
		}

		got, ok, err := s.Lookup(ctx, cache.TypeStandings, cache.Params{"league": "39", "season": "2024"})
		if err != nil || !ok {
			t.Fatalf("Lookup() = (%v, %v), want hit", ok, err)
		}
		if string(got.Body) != string(body) {
			t.Errorf("Lookup() body = %s, want %s", got.Body, body)
		}
		if got.ID != stored.ID {
			t.Errorf("Lookup() ID = %v, want %v", got.ID, stored.ID)
		}
		if got.Type != cache.TypeStandings {
			t.Errorf("Lookup() Type = %q, want %q", got.Type, cache.TypeStandings)
		}
		if got.Params["league"] != "39" || got.Params["season"] != "2024" {
			t.Errorf("Lookup() Params = %v", got.Params)
		}
	})

	t.Run("reordered params hit the same entry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Store(ctx, "standings", cache.Params{"league": "39", "season": "2024"}, []byte("{...json...}")); err != nil {
			t.Fatalf("Store() error = %v", err)
		}

		reordered := cache.Params{}
		reordered["season"] = "2024"
		reordered["league"] = "39"
		got, ok, err := s.Lookup(ctx, "standings", reordered)
		if err != nil || !ok {
			t.Fatalf("Lookup() = (%v, %v), want hit", ok, err)
		}
		if string(got.Body) != "{...json...}" {
			t.Errorf("Lookup() body = %s", got.Body)
		}
	})

	t.Run("equivalent value types hit the same entry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Store(ctx, cache.TypeStandings, cache.Params{"league": 39, "season": int64(2024)}, []byte("typed")); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		got, ok, err := s.Lookup(ctx, cache.TypeStandings, cache.Params{"season": "2024", "league": " 39 "})
		if err != nil || !ok {
			t.Fatalf("Lookup() = (%v, %v), want hit", ok, err)
		}
		if string(got.Body) != "typed" {
			t.Errorf("Lookup() body = %s, want typed", got.Body)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := cache.Params{"league": "39", "season": "2024"}

		first, err := s.Store(ctx, cache.TypeStandings, p, []byte("A"))
		if err != nil {
			t.Fatalf("Store(A) error = %v", err)
		}
		// Keep StoredAt strictly increasing on coarse clocks.
		time.Sleep(2 * time.Millisecond)
		second, err := s.Store(ctx, cache.TypeStandings, p, []byte("B"))
		if err != nil {
			t.Fatalf("Store(B) error = %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("overwrite changed ID: %v -> %v", first.ID, second.ID)
		}
		if second.StoredAt.Before(first.StoredAt) {
			t.Errorf("StoredAt went backwards: %v -> %v", first.StoredAt, second.StoredAt)
		}

		got, ok, err := s.Lookup(ctx, cache.TypeStandings, p)
		if err != nil || !ok {
			t.Fatalf("Lookup() = (%v, %v), want hit", ok, err)
		}
		if string(got.Body) != "B" {
			t.Errorf("Lookup() body = %s, want B", got.Body)
		}
	})

	t.Run("types and params are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		mustStore(t, s, cache.TypeStandings, cache.Params{"league": "39", "season": "2024"}, "standings-39")
		mustStore(t, s, cache.TypeTeams, cache.Params{"league": "39", "season": "2024"}, "teams-39")
		mustStore(t, s, cache.TypeStandings, cache.Params{"league": "140", "season": "2024"}, "standings-140")

		assertBody(t, s, cache.TypeStandings, cache.Params{"league": "39", "season": "2024"}, "standings-39")
		assertBody(t, s, cache.TypeTeams, cache.Params{"league": "39", "season": "2024"}, "teams-39")
		assertBody(t, s, cache.TypeStandings, cache.Params{"league": "140", "season": "2024"}, "standings-140")

		// No partial or prefix matching.
		_, ok, err := s.Lookup(ctx, cache.TypeStandings, cache.Params{"league": "39"})
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if ok {
			t.Error("Lookup() with a subset of params should miss")
		}
	})

	t.Run("empty params are a valid key", func(t *testing.T) {
		s := newStore(t)
		mustStore(t, s, cache.TypeLeagues, nil, "all-leagues")
		assertBody(t, s, cache.TypeLeagues, cache.Params{}, "all-leagues")
	})

	t.Run("nil body is stored empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.Store(ctx, cache.TypeFixturesLive, cache.Params{"live": "all"}, nil); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		got, ok, err := s.Lookup(ctx, cache.TypeFixturesLive, cache.Params{"live": "all"})
		if err != nil || !ok {
			t.Fatalf("Lookup() = (%v, %v), want hit", ok, err)
		}
		if len(got.Body) != 0 {
			t.Errorf("Lookup() body = %q, want empty", got.Body)
		}
	})

	t.Run("delete removes entry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := cache.Params{"fixture": "1035037"}

		mustStore(t, s, cache.TypeFixtureEvents, p, "events")
		if err := s.Delete(ctx, cache.TypeFixtureEvents, p); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, ok, err := s.Lookup(ctx, cache.TypeFixtureEvents, p); err != nil || ok {
			t.Errorf("Lookup() after Delete = (%v, %v), want miss", ok, err)
		}
		if err := s.Delete(ctx, cache.TypeFixtureEvents, p); err != nil {
			t.Errorf("Delete() of missing key error = %v", err)
		}
	})

	t.Run("invalid cache type is rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Store(context.Background(), "", cache.Params{"a": "b"}, []byte("x"))
		if !errors.Is(err, cache.ErrInvalidKey) {
			t.Errorf("Store() error = %v, want ErrInvalidKey", err)
		}
		_, _, err = s.Lookup(context.Background(), "Bad Type", nil)
		if !errors.Is(err, cache.ErrInvalidKey) {
			t.Errorf("Lookup() error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("concurrent writers leave one entry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := cache.Params{"date": "2024-08-17"}

		const writers = 8
		bodies := make(map[string]bool, writers)
		for i := 0; i < writers; i++ {
			bodies[fmt.Sprintf("body-%d", i)] = true
		}

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for body := range bodies {
			wg.Add(1)
			go func(body string) {
				defer wg.Done()
				if _, err := s.Store(ctx, cache.TypeFixturesByDate, p, []byte(body)); err != nil {
					errs <- err
				}
			}(body)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent Store() error = %v", err)
		}

		got, ok, err := s.Lookup(ctx, cache.TypeFixturesByDate, p)
		if err != nil || !ok {
			t.Fatalf("Lookup() = (%v, %v), want hit", ok, err)
		}
		if !bodies[string(got.Body)] {
			t.Errorf("Lookup() body = %s, not one of the written bodies", got.Body)
		}
	})
}

func mustStore(t *testing.T, s cache.Store, typ cache.CacheType, p cache.Params, body string) {
	t.Helper()
	if _, err := s.Store(context.Background(), typ, p, []byte(body)); err != nil {
		t.Fatalf("Store(%s) error = %v", typ, err)
	}
}

func assertBody(t *testing.T, s cache.Store, typ cache.CacheType, p cache.Params, want string) {
	t.Helper()
	got, ok, err := s.Lookup(context.Background(), typ, p)
	if err != nil || !ok {
		t.Fatalf("Lookup(%s, %v) = (%v, %v), want hit", typ, p, ok, err)
	}
	if string(got.Body) != want {
		t.Errorf("Lookup(%s, %v) body = %s, want %s", typ, p, got.Body, want)
	}
}
