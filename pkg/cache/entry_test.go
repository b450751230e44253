package cache

import (
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	key, err := NewKey(TypeStandings, Params{"league": 39, "season": 2024})
	if err != nil {
		t.Fatalf("NewKey() error = %v", err)
	}
	now := time.Date(2024, 8, 17, 15, 0, 0, 0, time.FixedZone("CEST", 7200))

	entry := newEntry(key, []byte(`{"ok":true}`), now)

	if entry.ID != key.ID() {
		t.Errorf("ID = %v, want %v", entry.ID, key.ID())
	}
	if entry.Type != TypeStandings {
		t.Errorf("Type = %q, want %q", entry.Type, TypeStandings)
	}
	if entry.Params["league"] != "39" || entry.Params["season"] != "2024" {
		t.Errorf("Params = %v", entry.Params)
	}
	if entry.StoredAt.Location() != time.UTC {
		t.Errorf("StoredAt location = %v, want UTC", entry.StoredAt.Location())
	}
	if !entry.StoredAt.Equal(now) {
		t.Errorf("StoredAt = %v, want %v", entry.StoredAt, now)
	}
}

func TestNewEntry_NilBody(t *testing.T) {
	key, _ := NewKey(TypeLeagues, nil)
	entry := newEntry(key, nil, time.Now())
	if entry.Body == nil || len(entry.Body) != 0 {
		t.Errorf("Body = %#v, want empty non-nil slice", entry.Body)
	}
}

func TestCacheEntry_Clone(t *testing.T) {
	original := &CacheEntry{
		Type:   TypeTeams,
		Params: map[string]string{"league": "39"},
		Body:   []byte("abc"),
	}

	clone := original.Clone()
	clone.Body[0] = 'x'
	clone.Params["league"] = "140"

	if string(original.Body) != "abc" {
		t.Errorf("original Body mutated: %s", original.Body)
	}
	if original.Params["league"] != "39" {
		t.Errorf("original Params mutated: %v", original.Params)
	}

	var nilEntry *CacheEntry
	if nilEntry.Clone() != nil {
		t.Error("Clone() of nil entry should be nil")
	}
}

func TestCacheEntry_Age(t *testing.T) {
	entry := &CacheEntry{StoredAt: time.Now().Add(-1 * time.Minute)}
	age := entry.Age()
	if age < 59*time.Second || age > 61*time.Second {
		t.Errorf("Age() = %v, want about 1m", age)
	}
}
