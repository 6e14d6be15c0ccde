package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir is required")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir is required")
	}
	if c.Watch.Root == "" {
		return errors.New("watch.root is required")
	}
	if c.Watch.DebounceMS <= 0 {
		return fmt.Errorf("watch.debounce_ms must be positive, got %d", c.Watch.DebounceMS)
	}
	if c.Index.MaxFileSize < 0 {
		return fmt.Errorf("index.max_file_size must not be negative, got %d", c.Index.MaxFileSize)
	}
	for _, pattern := range append(append([]string{}, c.Watch.Allow...), c.Watch.Block...) {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("invalid watch pattern %q: %w", pattern, err)
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
