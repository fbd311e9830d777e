package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// SQLiteTier persists cache entries in a single SQLite table keyed by fingerprint.
type SQLiteTier struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLiteTier creates (or opens) the cache database at path.
func OpenSQLiteTier(path string) (*SQLiteTier, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	tier := &SQLiteTier{db: db, path: path}
	if err := tier.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return tier, nil
}

func (s *SQLiteTier) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		ttl_ms INTEGER NOT NULL,
		deps TEXT NOT NULL,
		entities TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

// Name implements ports.CacheTier.
func (s *SQLiteTier) Name() string {
	return domain.CacheBackendSQLite
}

// Path returns the database location.
func (s *SQLiteTier) Path() string {
	return s.path
}

// Get implements ports.CacheTier. Rows that fail to decode are deleted and reported as
// misses.
func (s *SQLiteTier) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, kind, value, created_at, ttl_ms, deps, entities FROM cache_entries WHERE key = ?`, key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	var corrupt *corruptEntryError
	if errors.As(err, &corrupt) {
		_ = s.Delete(ctx, key)
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("read cache entry: %w", err)
	}
	return entry, true, nil
}

// Put implements ports.CacheTier as an upsert, so the last writer wins.
func (s *SQLiteTier) Put(ctx context.Context, entry domain.CacheEntry) error {
	deps, err := json.Marshal(entry.Dependencies)
	if err != nil {
		return err
	}
	entities, err := json.Marshal(entry.Entities)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO cache_entries
		(key, kind, value, created_at, ttl_ms, deps, entities)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			value = excluded.value,
			created_at = excluded.created_at,
			ttl_ms = excluded.ttl_ms,
			deps = excluded.deps,
			entities = excluded.entities`,
		entry.Key,
		string(entry.Kind),
		entry.Value,
		entry.CreatedAt.UnixNano(),
		entry.TTL.Milliseconds(),
		string(deps),
		string(entities),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete implements ports.CacheTier.
func (s *SQLiteTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete cache entry: %w", err)
		}
	}
	return tx.Commit()
}

// List implements ports.CacheTier. Undecodable rows are skipped.
func (s *SQLiteTier) List(ctx context.Context) ([]domain.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, kind, value, created_at, ttl_ms, deps, entities FROM cache_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			var corrupt *corruptEntryError
			if errors.As(err, &corrupt) {
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Clear implements ports.CacheTier.
func (s *SQLiteTier) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return err
}

// Close implements ports.CacheTier.
func (s *SQLiteTier) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

type corruptEntryError struct {
	key string
	err error
}

func (e *corruptEntryError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.key, e.err)
}

func scanEntry(row rowScanner) (domain.CacheEntry, error) {
	var (
		entry            domain.CacheEntry
		kind, deps, ents string
		createdAt, ttlMS int64
	)
	if err := row.Scan(&entry.Key, &kind, &entry.Value, &createdAt, &ttlMS, &deps, &ents); err != nil {
		return domain.CacheEntry{}, err
	}
	entry.Kind = domain.OperationKind(kind)
	entry.CreatedAt = time.Unix(0, createdAt)
	entry.TTL = time.Duration(ttlMS) * time.Millisecond
	if err := json.Unmarshal([]byte(deps), &entry.Dependencies); err != nil {
		return domain.CacheEntry{}, &corruptEntryError{key: entry.Key, err: err}
	}
	if err := json.Unmarshal([]byte(ents), &entry.Entities); err != nil {
		return domain.CacheEntry{}, &corruptEntryError{key: entry.Key, err: err}
	}
	return entry, nil
}

var _ ports.CacheTier = (*SQLiteTier)(nil)
