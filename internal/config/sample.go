package config

import (
	"fmt"
	"os"
)

const sampleConfig = `# Trove configuration.
# All paths may use ~ for the home directory.

[paths]
# Where the daemon keeps its socket, pid marker, and databases.
state_dir = "~/.local/share/trove"
log_dir = "~/.local/share/trove/logs"

[watch]
# Directory tree to watch and index.
root = "~"
# Quiet window before coalesced change notifications are delivered.
debounce_ms = 300
# Glob patterns. Block wins over allow; an empty allow list allows everything.
allow = []
block = [".git", ".hg", "node_modules", "__pycache__", ".cache"]

[index]
# Files larger than this many bytes are skipped.
max_file_size = 10485760

[logging]
# "console" or "json"
format = "console"
level = "info"
`

// CreateSample writes a commented sample configuration to the given path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
