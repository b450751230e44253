// Package sqlstore implements cache.Store on SQLite via modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/Sternrassler/scoreboard-cache/pkg/cache"
)

//go:embed migrations/*.sql
var migrations embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// timeLayout keeps stored_at sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps one row per (cache_type, params_key) in cached_api_responses.
type Store struct {
	write *sql.DB // single-writer connection
	read  *sql.DB // multi-reader pool
	now   func() time.Time
}

var _ cache.Store = (*Store)(nil)

// New opens a SQLite database, runs migrations, and returns a Store.
func New(dsn string) (*Store, error) {
	pragmas := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	// For :memory: databases, use shared cache so read/write pools share the same data
	var fullDSN string
	if dsn == ":memory:" {
		fullDSN = "file::memory:?mode=memory&cache=shared&" + pragmas
	} else {
		fullDSN = "file:" + dsn + "?" + pragmas
	}

	write, err := sql.Open("sqlite", fullDSN)
	if err != nil {
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "open", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", fullDSN)
	if err != nil {
		write.Close()
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "open", err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	if err := runMigrations(write); err != nil {
		write.Close()
		read.Close()
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "migrate", err)
	}

	return &Store{write: write, read: read, now: time.Now}, nil
}

// runMigrations applies embedded SQL migrations using goose.
func runMigrations(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(context.Background())
	return err
}

// Lookup returns the row for (t, p).
func (s *Store) Lookup(ctx context.Context, t cache.CacheType, p cache.Params) (*cache.CacheEntry, bool, error) {
	key, err := cache.NewKey(t, p)
	if err != nil {
		return nil, false, err
	}

	row := s.read.QueryRowContext(ctx,
		`SELECT id, cache_type, params_json, body, stored_at
		 FROM cached_api_responses WHERE cache_type=? AND params_key=?`,
		string(key.Type), key.Params.Canonical(),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		cache.CacheMisses.WithLabelValues(cache.LayerSQLite).Inc()
		return nil, false, nil
	}
	if err != nil {
		cache.CacheErrors.WithLabelValues(cache.LayerSQLite, "lookup").Inc()
		return nil, false, err
	}

	cache.CacheHits.WithLabelValues(cache.LayerSQLite).Inc()
	return entry, true, nil
}

// Store upserts the row for (t, p). The statement runs in a single
// transaction, so a failed write leaves the previous row intact.
func (s *Store) Store(ctx context.Context, t cache.CacheType, p cache.Params, body []byte) (*cache.CacheEntry, error) {
	key, err := cache.NewKey(t, p)
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = []byte{}
	}

	params := key.Params.Map()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	now := s.now().UTC().Format(timeLayout)

	var id, storedAt string
	err = s.write.QueryRowContext(ctx,
		`INSERT INTO cached_api_responses (id, cache_type, params_key, params_json, body, created_at, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (cache_type, params_key) DO UPDATE SET
		   params_json=excluded.params_json, body=excluded.body, stored_at=excluded.stored_at
		 RETURNING id, stored_at`,
		key.ID().String(), string(key.Type), key.Params.Canonical(), string(paramsJSON), body, now, now,
	).Scan(&id, &storedAt)
	if err != nil {
		cache.CacheErrors.WithLabelValues(cache.LayerSQLite, "store").Inc()
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "upsert", err)
	}

	entry := &cache.CacheEntry{
		ID:     key.ID(),
		Type:   key.Type,
		Params: params,
		Body:   append([]byte(nil), body...),
	}
	if entry.StoredAt, err = time.Parse(timeLayout, storedAt); err != nil {
		return nil, fmt.Errorf("%w: stored_at %q", cache.ErrInvalidEntry, storedAt)
	}

	cache.CacheStores.WithLabelValues(cache.LayerSQLite).Inc()
	cache.CacheBodyBytes.WithLabelValues(cache.LayerSQLite).Observe(float64(len(body)))
	return entry, nil
}

// Delete removes the row for (t, p).
func (s *Store) Delete(ctx context.Context, t cache.CacheType, p cache.Params) error {
	key, err := cache.NewKey(t, p)
	if err != nil {
		return err
	}
	_, err = s.write.ExecContext(ctx,
		`DELETE FROM cached_api_responses WHERE cache_type=? AND params_key=?`,
		string(key.Type), key.Params.Canonical(),
	)
	if err != nil {
		cache.CacheErrors.WithLabelValues(cache.LayerSQLite, "delete").Inc()
		return cache.NewPersistenceError(cache.LayerSQLite, "delete", err)
	}
	return nil
}

// ListByType returns up to limit entries of type t, most recently stored first.
func (s *Store) ListByType(ctx context.Context, t cache.CacheType, limit int) ([]*cache.CacheEntry, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.read.QueryContext(ctx,
		`SELECT id, cache_type, params_json, body, stored_at
		 FROM cached_api_responses WHERE cache_type=? ORDER BY stored_at DESC LIMIT ?`,
		string(t), limit,
	)
	if err != nil {
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "list", err)
	}
	defer rows.Close()

	var entries []*cache.CacheEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "list", err)
	}
	return entries, nil
}

// Ping verifies database connectivity by pinging the read pool.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.read.PingContext(ctx); err != nil {
		return cache.NewPersistenceError(cache.LayerSQLite, "ping", err)
	}
	return nil
}

// Close closes both database connections.
func (s *Store) Close() error {
	return errors.Join(s.write.Close(), s.read.Close())
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*cache.CacheEntry, error) {
	var (
		id, typ, paramsJSON, storedAt string
		body                          []byte
	)
	if err := sc.Scan(&id, &typ, &paramsJSON, &body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, cache.NewPersistenceError(cache.LayerSQLite, "scan", err)
	}

	e := &cache.CacheEntry{Type: cache.CacheType(typ), Body: body}
	if e.Body == nil {
		e.Body = []byte{}
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: id %q", cache.ErrInvalidEntry, id)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &e.Params); err != nil {
		return nil, fmt.Errorf("%w: params: %v", cache.ErrInvalidEntry, err)
	}
	if e.StoredAt, err = time.Parse(timeLayout, storedAt); err != nil {
		return nil, fmt.Errorf("%w: stored_at %q", cache.ErrInvalidEntry, storedAt)
	}
	return e, nil
}
