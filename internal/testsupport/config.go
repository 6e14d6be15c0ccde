package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"trove/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Watch.Root = filepath.Join(base, "tree")
	cfg.Watch.DebounceMS = 50

	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Watch.Root} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDebounce overrides the watcher debounce interval in milliseconds.
func WithDebounce(ms int) ConfigOption {
	return func(c *config.Config) {
		c.Watch.DebounceMS = ms
	}
}

// WithMaxFileSize overrides the indexing size ceiling.
func WithMaxFileSize(limit int64) ConfigOption {
	return func(c *config.Config) {
		c.Index.MaxFileSize = limit
	}
}
