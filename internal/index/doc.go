// Package index persists metadata for tracked files in SQLite.
//
// The store is the single source of truth for file state: one row per path,
// replaced wholesale on re-index. Writes serialize through SQLite's WAL with
// a busy-retry loop so concurrent RPC handlers and watcher callbacks never
// observe a torn row.
package index
