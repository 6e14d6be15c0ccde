package index_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trove/internal/index"
	"trove/internal/testsupport"
)

func TestIndexFileUpsertDoesNotDoubleCount(t *testing.T) {
	store := testsupport.MustOpenIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mtime := time.Now().UTC()
	if err := store.IndexFile(ctx, "/tmp/a.txt", 100, mtime); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if err := store.IndexFile(ctx, "/tmp/a.txt", 250, mtime.Add(time.Second)); err != nil {
		t.Fatalf("IndexFile second: %v", err)
	}
	if err := store.IndexFile(ctx, "/tmp/b.txt", 50, mtime); err != nil {
		t.Fatalf("IndexFile b: %v", err)
	}

	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if summary.Files != 2 {
		t.Fatalf("expected 2 entries, got %d", summary.Files)
	}
	if summary.TotalBytes != 300 {
		t.Fatalf("expected 300 total bytes, got %d", summary.TotalBytes)
	}
	if summary.LastIndexedAt.IsZero() {
		t.Fatal("expected last indexed timestamp to be set")
	}
}

func TestRemoveFileIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.IndexFile(ctx, "/tmp/gone.txt", 10, time.Now()); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if err := store.RemoveFile(ctx, "/tmp/gone.txt"); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if err := store.RemoveFile(ctx, "/tmp/gone.txt"); err != nil {
		t.Fatalf("RemoveFile repeat: %v", err)
	}
	if err := store.RemoveFile(ctx, "/tmp/never-indexed.txt"); err != nil {
		t.Fatalf("RemoveFile absent: %v", err)
	}

	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if summary.Files != 0 || summary.TotalBytes != 0 {
		t.Fatalf("expected empty index, got %+v", summary)
	}
}

func TestLookup(t *testing.T) {
	store := testsupport.MustOpenIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mtime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.IndexFile(ctx, "/tmp/x.txt", 42, mtime); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	entry, err := store.Lookup(ctx, "/tmp/x.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.SizeBytes != 42 || !entry.ModifiedAt.Equal(mtime) {
		t.Fatalf("unexpected entry %+v", entry)
	}

	missing, err := store.Lookup(ctx, "/tmp/missing.txt")
	if err != nil {
		t.Fatalf("Lookup missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown path, got %+v", missing)
	}
}

func TestConcurrentIndexFileNoLostUpdates(t *testing.T) {
	store := testsupport.MustOpenIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/tmp/concurrent/%d.txt", i)
			errs <- store.IndexFile(ctx, path, int64(i), time.Now())
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent IndexFile: %v", err)
		}
	}

	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if summary.Files != n {
		t.Fatalf("expected %d entries, got %d", n, summary.Files)
	}
}

func TestClear(t *testing.T) {
	store := testsupport.MustOpenIndex(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.IndexFile(ctx, fmt.Sprintf("/tmp/%d.txt", i), 1, time.Now()); err != nil {
			t.Fatalf("IndexFile: %v", err)
		}
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if summary.Files != 0 {
		t.Fatalf("expected empty index after clear, got %d", summary.Files)
	}
}

func TestStorageErrorClassification(t *testing.T) {
	store := testsupport.MustOpenIndex(t, testsupport.NewConfig(t))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := store.IndexFile(context.Background(), "/tmp/after-close.txt", 1, time.Now())
	if !errors.Is(err, index.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
