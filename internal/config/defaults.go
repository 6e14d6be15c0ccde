package config

const (
	defaultStateDir    = "~/.local/share/trove"
	defaultLogDir      = "~/.local/share/trove/logs"
	defaultWatchRoot   = "~"
	defaultDebounceMS  = 300
	defaultMaxFileSize = 10 * 1024 * 1024
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Watch: Watch{
			Root:       defaultWatchRoot,
			DebounceMS: defaultDebounceMS,
			Block: []string{
				".git",
				".hg",
				"node_modules",
				"__pycache__",
				".cache",
			},
		},
		Index: Index{
			MaxFileSize: defaultMaxFileSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
