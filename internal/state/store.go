package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trove/internal/config"
)

// Recognized daemon state keys.
const (
	KeyIndexing  = "indexing"
	KeyStartedAt = "started_at"
	KeyStoppedAt = "stopped_at"
)

// Store persists the daemon's flat key/value state in SQLite.
//
// The mapping is small and changes rarely, so Save replaces the whole table
// in one transaction. A concurrent Load observes either the previous mapping
// in full or the new one in full.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the daemon state database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.StateDBPath())
}

// OpenPath opens the state database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS daemon_state (
            key        TEXT PRIMARY KEY,
            value      TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the current full state mapping, empty if none was ever saved.
func (s *Store) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM daemon_state`)
	if err != nil {
		return nil, fmt.Errorf("load daemon state: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan daemon state: %w", err)
		}
		mapping[key] = value
	}
	return mapping, rows.Err()
}

// Save replaces the entire persisted mapping atomically.
func (s *Store) Save(ctx context.Context, mapping map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM daemon_state`); err != nil {
		return fmt.Errorf("clear daemon state: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, value := range mapping {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO daemon_state (key, value, updated_at) VALUES (?, ?, ?)`,
			key, value, now,
		); err != nil {
			return fmt.Errorf("insert daemon state %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit daemon state: %w", err)
	}
	return nil
}

// SetIndexing persists the indexing flag, preserving the rest of the mapping.
func (s *Store) SetIndexing(ctx context.Context, indexing bool) error {
	return s.merge(ctx, map[string]string{KeyIndexing: formatBool(indexing)})
}

// Indexing reports the persisted indexing flag.
func (s *Store) Indexing(ctx context.Context) (bool, error) {
	mapping, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return mapping[KeyIndexing] == "true", nil
}

func (s *Store) merge(ctx context.Context, updates map[string]string) error {
	mapping, err := s.Load(ctx)
	if err != nil {
		return err
	}
	for key, value := range updates {
		mapping[key] = value
	}
	return s.Save(ctx, mapping)
}

// Merge applies updates on top of the current mapping and saves the result.
func (s *Store) Merge(ctx context.Context, updates map[string]string) error {
	return s.merge(ctx, updates)
}

func formatBool(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
