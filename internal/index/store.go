package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trove/internal/config"
)

// ErrStorageUnavailable indicates the underlying database could not serve a request.
// Callers surface it as a degraded status instead of crashing the daemon.
var ErrStorageUnavailable = errors.New("index storage unavailable")

// timeLayout is RFC 3339 with a fixed-width fraction. RFC3339Nano trims
// trailing zeros, which breaks lexicographic ordering ("…00.5Z" sorts above
// "…00.51Z"), and Stats relies on MAX() over the stored strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Entry is one indexed file.
type Entry struct {
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
	IndexedAt  time.Time
}

// Summary aggregates index contents in a single consistent snapshot.
type Summary struct {
	Files         int64
	TotalBytes    int64
	LastIndexedAt time.Time
}

// Store manages index persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the index database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.IndexDBPath())
}

// OpenPath opens the index database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS files (
            path        TEXT PRIMARY KEY,
            size_bytes  INTEGER NOT NULL,
            modified_at TEXT NOT NULL,
            indexed_at  TEXT NOT NULL
        )`)
	if err != nil {
		return fmt.Errorf("init index schema: %w", err)
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// IndexFile upserts the entry for path. Both fields are replaced together so a
// reader never observes a half-updated row.
func (s *Store) IndexFile(ctx context.Context, path string, sizeBytes int64, modifiedAt time.Time) error {
	if sizeBytes < 0 {
		return fmt.Errorf("negative size %d for %s", sizeBytes, path)
	}
	err := s.execWithRetry(
		ctx,
		`INSERT INTO files (path, size_bytes, modified_at, indexed_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
             size_bytes = excluded.size_bytes,
             modified_at = excluded.modified_at,
             indexed_at = excluded.indexed_at`,
		path,
		sizeBytes,
		formatTime(modifiedAt),
		formatTime(time.Now()),
	)
	if err != nil {
		return storageError("index file", err)
	}
	return nil
}

// RemoveFile deletes the entry for path. A missing entry is not an error.
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	if err := s.execWithRetry(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return storageError("remove file", err)
	}
	return nil
}

// Lookup returns the entry for path, or nil when the path is not indexed.
func (s *Store) Lookup(ctx context.Context, path string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT path, size_bytes, modified_at, indexed_at FROM files WHERE path = ?`,
		path,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("lookup file", err)
	}
	return entry, nil
}

// Stats returns entry count, total size, and the newest indexed_at value in
// one query so the numbers come from a single snapshot.
func (s *Store) Stats(ctx context.Context) (Summary, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(MAX(indexed_at), '') FROM files`,
	)

	var (
		summary Summary
		lastRaw string
	)
	if err := row.Scan(&summary.Files, &summary.TotalBytes, &lastRaw); err != nil {
		return Summary{}, storageError("index stats", err)
	}
	if lastRaw != "" {
		if last, err := time.Parse(time.RFC3339Nano, lastRaw); err == nil {
			summary.LastIndexedAt = last
		}
	}
	return summary, nil
}

// Clear removes every entry. Used by rebuild scans.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.execWithRetry(ctx, `DELETE FROM files`); err != nil {
		return storageError("clear index", err)
	}
	return nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		modifiedRaw string
		indexedRaw  string
	)
	if err := scanner.Scan(&entry.Path, &entry.SizeBytes, &modifiedRaw, &indexedRaw); err != nil {
		return nil, err
	}
	if modified, err := time.Parse(time.RFC3339Nano, modifiedRaw); err == nil {
		entry.ModifiedAt = modified
	}
	if indexed, err := time.Parse(time.RFC3339Nano, indexedRaw); err == nil {
		entry.IndexedAt = indexed
	}
	return &entry, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
