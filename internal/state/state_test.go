package state_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trove/internal/state"
	"trove/internal/testsupport"
)

func TestLoadEmptyMapping(t *testing.T) {
	store := testsupport.MustOpenState(t, testsupport.NewConfig(t))

	mapping, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mapping) != 0 {
		t.Fatalf("expected empty mapping, got %v", mapping)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := testsupport.MustOpenState(t, testsupport.NewConfig(t))
	ctx := context.Background()

	mapping := map[string]string{
		state.KeyIndexing:  "true",
		state.KeyStartedAt: "2026-08-31T10:00:00Z",
		"custom":           "value with spaces",
	}
	if err := store.Save(ctx, mapping); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(mapping) {
		t.Fatalf("expected %d keys, got %d", len(mapping), len(loaded))
	}
	for key, want := range mapping {
		if loaded[key] != want {
			t.Fatalf("key %q = %q, want %q", key, loaded[key], want)
		}
	}
}

func TestSaveReplacesWholeMapping(t *testing.T) {
	store := testsupport.MustOpenState(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Save(ctx, map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := store.Save(ctx, map[string]string{"c": "3"}); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded["c"] != "3" {
		t.Fatalf("expected replace-all semantics, got %v", loaded)
	}
}

func TestSetIndexingPreservesOtherKeys(t *testing.T) {
	store := testsupport.MustOpenState(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Save(ctx, map[string]string{state.KeyStartedAt: "sometime"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.SetIndexing(ctx, true); err != nil {
		t.Fatalf("SetIndexing: %v", err)
	}

	indexing, err := store.Indexing(ctx)
	if err != nil {
		t.Fatalf("Indexing: %v", err)
	}
	if !indexing {
		t.Fatal("expected indexing=true")
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded[state.KeyStartedAt] != "sometime" {
		t.Fatalf("expected started_at preserved, got %v", loaded)
	}
}

func TestMarkerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troved.pid")
	marker := state.NewMarker(path)

	if marker.Alive() {
		t.Fatal("expected missing marker to read as not alive")
	}

	if err := marker.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := marker.Read(); got != os.Getpid() {
		t.Fatalf("Read = %d, want %d", got, os.Getpid())
	}
	if !marker.Alive() {
		t.Fatal("expected current process marker to be alive")
	}

	if err := marker.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := marker.Remove(); err != nil {
		t.Fatalf("Remove repeat: %v", err)
	}
}

func TestMarkerStalePIDReadsNotRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troved.pid")
	// Max pid on Linux defaults to 4194304; anything above it cannot exist.
	if err := os.WriteFile(path, []byte("99999999\n"), 0o644); err != nil {
		t.Fatalf("write stale pid: %v", err)
	}

	marker := state.NewMarker(path)
	if marker.Alive() {
		t.Fatal("expected stale marker to read as not alive")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected stale marker file to be cleaned up")
	}
}

func TestMarkerGarbageContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troved.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	marker := state.NewMarker(path)
	if marker.Read() != 0 {
		t.Fatal("expected garbage marker to read as zero")
	}
	if marker.Alive() {
		t.Fatal("expected garbage marker to read as not alive")
	}
}
