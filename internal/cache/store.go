// Package cache persists extracted features across runs so a large camera
// roll is only decoded once. Entries are keyed by path, size and
// modification time; any change to the file invalidates its entry.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"retrace/internal/media"
)

// schemaVersion is bumped whenever the stored fingerprint semantics change
// (hash algorithm, orientation handling, downscale bound).
const schemaVersion = 1

// Entry is a cached extraction result.
type Entry struct {
	Kind    media.Kind
	Feature media.Feature
	// CreatedUnix is the container creation time for videos, 0 when absent.
	CreatedUnix int64
}

// Store manages the feature cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}
	// Pragmas in the DSN apply to every pooled connection, not just the first.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Serialized: extraction workers share one store.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read cache schema version: %w", err)
	}
	if version != schemaVersion {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS features"); err != nil {
			return fmt.Errorf("drop stale cache: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS features (
		path TEXT NOT NULL PRIMARY KEY,
		size INTEGER NOT NULL,
		mtime_ns INTEGER NOT NULL,
		kind TEXT NOT NULL,
		available INTEGER NOT NULL,
		fingerprint INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		created_unix INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return fmt.Errorf("create features table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set cache schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the entry for path when size and modTime still match.
func (s *Store) Lookup(ctx context.Context, path string, size int64, modTime time.Time) (Entry, bool, error) {
	var (
		kindText    string
		available   bool
		fingerprint int64
		entry       Entry
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, available, fingerprint, duration, created_unix, error
		 FROM features WHERE path = ? AND size = ? AND mtime_ns = ?`,
		path, size, modTime.UnixNano(),
	).Scan(&kindText, &available, &fingerprint, &entry.Feature.Duration, &entry.CreatedUnix, &entry.Feature.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup %s: %w", path, err)
	}
	if err := entry.Kind.UnmarshalText([]byte(kindText)); err != nil {
		return Entry{}, false, err
	}
	entry.Feature.Available = available
	// SQLite integers are signed; the fingerprint bits round-trip through int64.
	entry.Feature.Fingerprint = media.Fingerprint(uint64(fingerprint))
	if entry.Kind == media.KindVideo {
		entry.Feature.Size = size
	}
	return entry, true, nil
}

// Store inserts or replaces the entry for path.
func (s *Store) Store(ctx context.Context, path string, size int64, modTime time.Time, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO features (path, size, mtime_ns, kind, available, fingerprint, duration, created_unix, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			kind = excluded.kind,
			available = excluded.available,
			fingerprint = excluded.fingerprint,
			duration = excluded.duration,
			created_unix = excluded.created_unix,
			error = excluded.error`,
		path, size, modTime.UnixNano(), entry.Kind.String(), entry.Feature.Available,
		int64(uint64(entry.Feature.Fingerprint)), entry.Feature.Duration, entry.CreatedUnix, entry.Feature.Error,
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	return nil
}

// Count returns the number of cached entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM features").Scan(&n); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return n, nil
}
