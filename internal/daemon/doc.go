// Package daemon orchestrates the indexing daemon's lifecycle: claiming the
// state directory, running the change watcher, driving background scans, and
// reporting status snapshots.
package daemon
