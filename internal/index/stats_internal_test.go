package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestStatsPicksNewestIndexedAt(t *testing.T) {
	store, err := OpenPath(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	// A 500ms fraction renders shorter than a 510ms one under RFC3339Nano,
	// which made the shorter string win MAX(). The fixed-width layout keeps
	// string order in step with time order.
	older := time.Date(2026, 8, 31, 10, 0, 0, 500_000_000, time.UTC)
	newer := older.Add(10 * time.Millisecond)
	rows := []struct {
		path string
		at   time.Time
	}{
		{"/tmp/older.txt", older},
		{"/tmp/newer.txt", newer},
	}
	for _, row := range rows {
		if _, err := store.db.ExecContext(ctx,
			`INSERT INTO files (path, size_bytes, modified_at, indexed_at) VALUES (?, ?, ?, ?)`,
			row.path, 1, formatTime(row.at), formatTime(row.at),
		); err != nil {
			t.Fatalf("insert %s: %v", row.path, err)
		}
	}

	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !summary.LastIndexedAt.Equal(newer) {
		t.Fatalf("LastIndexedAt = %s, want %s", summary.LastIndexedAt, newer)
	}
}

func TestFormatTimeIsFixedWidth(t *testing.T) {
	whole := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	frac := time.Date(2026, 8, 31, 10, 0, 0, 1, time.UTC)
	if len(formatTime(whole)) != len(formatTime(frac)) {
		t.Fatalf("width differs: %q vs %q", formatTime(whole), formatTime(frac))
	}
	if formatTime(whole) >= formatTime(frac) {
		t.Fatalf("string order disagrees with time order: %q >= %q", formatTime(whole), formatTime(frac))
	}
}
