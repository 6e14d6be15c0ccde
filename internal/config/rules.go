package config

import (
	"path/filepath"
	"strings"
)

// Filter reports whether a path is eligible for indexing.
type Filter func(path string) bool

// PathFilter compiles the allow/block rules into a predicate. Block rules win
// over allow rules; an empty allow list allows everything not blocked.
// Patterns match against the base name and against each path segment, so a
// plain directory name like "node_modules" excludes the whole subtree.
func (c *Config) PathFilter() Filter {
	allow := append([]string{}, c.Watch.Allow...)
	block := append([]string{}, c.Watch.Block...)

	return func(path string) bool {
		if matchesAny(block, path) {
			return false
		}
		if len(allow) == 0 {
			return true
		}
		return matchesAny(allow, path)
	}
}

func matchesAny(patterns []string, path string) bool {
	if len(patterns) == 0 {
		return false
	}
	segments := strings.Split(filepath.ToSlash(path), "/")
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		for _, segment := range segments {
			if segment == "" {
				continue
			}
			if ok, err := filepath.Match(pattern, segment); err == nil && ok {
				return true
			}
		}
	}
	return false
}
