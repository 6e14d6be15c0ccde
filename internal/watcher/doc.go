// Package watcher observes a filesystem subtree and emits debounced,
// coalesced change notifications.
//
// Raw fsnotify events for the same path within the debounce window collapse
// into one notification carrying the final observed action; the pending map
// doubles as backpressure, so a slow consumer coalesces harder instead of
// growing a queue. Losing the watch root stops the watcher; the orchestrator
// decides whether to start a new one.
package watcher
