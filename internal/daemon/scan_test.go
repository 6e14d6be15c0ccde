package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trove/internal/daemon"
	"trove/internal/testsupport"
)

func TestStartIndexingScansTree(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxFileSize(1024))
	d, indexStore, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	root := cfg.Watch.Root
	testsupport.WriteFile(t, filepath.Join(root, "a.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(root, "sub", "b.txt"), 20)
	testsupport.WriteFile(t, filepath.Join(root, ".git", "objects", "blob"), 5)
	testsupport.WriteFile(t, filepath.Join(root, "huge.bin"), 4096)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.StartIndexing(ctx, "", false); err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}

	waitFor(t, "scan to index two files", func() bool {
		summary, err := indexStore.Stats(ctx)
		return err == nil && summary.Files == 2
	})

	summary, err := indexStore.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if summary.TotalBytes != 30 {
		t.Fatalf("TotalBytes = %d, want 30", summary.TotalBytes)
	}

	waitFor(t, "indexing flag to clear", func() bool {
		return !d.Status(ctx).Indexing
	})
}

func TestIncrementalScanSkipsUnchangedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, indexStore, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	path := filepath.Join(cfg.Watch.Root, "stable.txt")
	testsupport.WriteFile(t, path, 64)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	runScanAndWait(t, d, false)

	before, err := indexStore.Lookup(ctx, path)
	if err != nil || before == nil {
		t.Fatalf("Lookup after first scan: entry=%v err=%v", before, err)
	}

	runScanAndWait(t, d, false)

	after, err := indexStore.Lookup(ctx, path)
	if err != nil || after == nil {
		t.Fatalf("Lookup after second scan: entry=%v err=%v", after, err)
	}
	if !after.IndexedAt.Equal(before.IndexedAt) {
		t.Fatalf("unchanged file was re-indexed: %v -> %v", before.IndexedAt, after.IndexedAt)
	}
}

func TestRebuildDropsEntriesForMissingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, indexStore, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	testsupport.WriteFile(t, filepath.Join(cfg.Watch.Root, "real.txt"), 8)
	ghost := filepath.Join(cfg.Watch.Root, "ghost.txt")
	if err := indexStore.IndexFile(ctx, ghost, 99, time.Now().UTC()); err != nil {
		t.Fatalf("seed ghost entry: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	runScanAndWait(t, d, false)
	entry, err := indexStore.Lookup(ctx, ghost)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("incremental scan should leave unrelated entries alone")
	}

	runScanAndWait(t, d, true)
	entry, err = indexStore.Lookup(ctx, ghost)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry != nil {
		t.Fatal("rebuild should drop entries for files that no longer exist")
	}
}

func TestIndexingRequiresRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	if err := d.StartIndexing(ctx, "", false); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("StartIndexing err = %v, want ErrNotRunning", err)
	}
	if err := d.StopIndexing(ctx); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("StopIndexing err = %v, want ErrNotRunning", err)
	}
}

func TestStartIndexingRejectsBadRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.StartIndexing(ctx, filepath.Join(cfg.Watch.Root, "missing"), false); err == nil {
		t.Fatal("StartIndexing should reject a nonexistent root")
	}
	file := filepath.Join(cfg.Watch.Root, "plain.txt")
	testsupport.WriteFile(t, file, 1)
	if err := d.StartIndexing(ctx, file, false); err == nil {
		t.Fatal("StartIndexing should reject a non-directory root")
	}
}

func TestStopIndexingWithoutScanClearsFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, stateStore := newTestDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := stateStore.SetIndexing(ctx, true); err != nil {
		t.Fatalf("SetIndexing: %v", err)
	}
	if err := d.StopIndexing(ctx); err != nil {
		t.Fatalf("StopIndexing: %v", err)
	}
	indexing, err := stateStore.Indexing(ctx)
	if err != nil {
		t.Fatalf("Indexing: %v", err)
	}
	if indexing {
		t.Fatal("indexing flag should be cleared")
	}
}

func TestWatcherChangesFlowIntoIndex(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, indexStore, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(cfg.Watch.Root, "live.txt")
	testsupport.WriteFile(t, path, 12)

	waitFor(t, "created file to be indexed", func() bool {
		entry, err := indexStore.Lookup(ctx, path)
		return err == nil && entry != nil && entry.SizeBytes == 12
	})

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, "deleted file to leave the index", func() bool {
		entry, err := indexStore.Lookup(ctx, path)
		return err == nil && entry == nil
	})
}

func runScanAndWait(t *testing.T, d *daemon.Daemon, rebuild bool) {
	t.Helper()

	ctx := context.Background()
	if err := d.StartIndexing(ctx, "", rebuild); err != nil {
		t.Fatalf("StartIndexing: %v", err)
	}
	waitFor(t, "scan to finish", func() bool {
		return !d.Status(ctx).Indexing
	})
}
