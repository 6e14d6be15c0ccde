package testsupport

import (
	"testing"

	"trove/internal/config"
	"trove/internal/index"
	"trove/internal/state"
)

// MustOpenIndex opens an index.Store for tests and registers cleanup.
func MustOpenIndex(t testing.TB, cfg *config.Config) *index.Store {
	t.Helper()

	store, err := index.Open(cfg)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenState opens a state.Store for tests and registers cleanup.
func MustOpenState(t testing.TB, cfg *config.Config) *state.Store {
	t.Helper()

	store, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
