package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Watch contains filesystem watcher configuration.
type Watch struct {
	Root       string   `toml:"root"`
	DebounceMS int      `toml:"debounce_ms"`
	Allow      []string `toml:"allow"`
	Block      []string `toml:"block"`
}

// Index contains indexing limits.
type Index struct {
	MaxFileSize int64 `toml:"max_file_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for trove.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories (sockets, pid marker, databases)
//   - Watch: watched root, debounce window, allow/block rules
//   - Index: per-file limits applied during scans and watch updates
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Watch   Watch   `toml:"watch"`
	Index   Index   `toml:"index"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/trove/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trove.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the IPC socket location inside the state directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "troved.sock")
}

// PIDPath returns the process marker file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "troved.pid")
}

// LockPath returns the state-directory lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "troved.lock")
}

// IndexDBPath returns the index database location.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.Paths.StateDir, "index.db")
}

// StateDBPath returns the daemon state database location.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.Paths.StateDir, "daemon_state.db")
}

// Debounce returns the watcher debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// ExpandPath resolves ~ prefixes and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Watch.Root, err = ExpandPath(c.Watch.Root); err != nil {
		return err
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
