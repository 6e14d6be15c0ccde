// Package config loads, validates, and defaults trove's TOML configuration.
//
// It owns path expansion (~ handling), directory creation for the state and
// log dirs, and the derived locations for the IPC socket, pid marker, and
// databases. It also compiles the watch allow/block rules into the path
// filter consumed by the watcher and scan code.
package config
