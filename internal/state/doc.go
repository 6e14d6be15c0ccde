// Package state persists daemon-level flags and the process identity marker.
//
// The key/value store uses replace-all semantics: Save swaps the whole
// mapping in one transaction, so readers never see a partial update. The pid
// marker file is the liveness signal clients and a restarting daemon check;
// stale markers are treated as "not running" and removed on read.
package state
