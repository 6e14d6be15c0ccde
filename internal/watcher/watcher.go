package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"trove/internal/logging"
)

// ErrWatchRootLost indicates the watched root became inaccessible. The
// watcher stops itself; restarting is the caller's decision.
var ErrWatchRootLost = errors.New("watch root lost")

// Action classifies a coalesced filesystem change.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Notification is one debounced (path, action) change.
type Notification struct {
	Path   string
	Action Action
}

// Options configures a watcher.
type Options struct {
	Root     string
	Debounce time.Duration
	// Filter gates created/modified paths. Deletes always pass because the
	// file is already gone and cannot be classified.
	Filter func(path string) bool
	// OnEvent receives coalesced notifications. Called from a single
	// delivery goroutine; slow callbacks cause pending changes to coalesce
	// further rather than queue without bound.
	OnEvent func(Notification)
	Logger  *slog.Logger
}

const defaultDebounce = 300 * time.Millisecond

// Watcher monitors a directory tree and delivers debounced, coalesced
// change notifications.
type Watcher struct {
	root     string
	debounce time.Duration
	filter   func(string) bool
	onEvent  func(Notification)
	logger   *slog.Logger

	fw *fsnotify.Watcher

	mu         sync.Mutex
	pending    map[string]Action
	timer      *time.Timer
	timerArmed bool

	flushCh  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	started  bool
	active   atomic.Bool
	rootLost atomic.Bool
}

// New constructs a watcher for the given root.
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" {
		return nil, errors.New("watcher requires a root path")
	}
	if opts.OnEvent == nil {
		return nil, errors.New("watcher requires an event callback")
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	filter := opts.Filter
	if filter == nil {
		filter = func(string) bool { return true }
	}
	return &Watcher{
		root:     opts.Root,
		debounce: debounce,
		filter:   filter,
		onEvent:  opts.OnEvent,
		logger:   logging.NewComponentLogger(opts.Logger, "watcher"),
		pending:  make(map[string]Action),
		flushCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the root recursively. It fails when called twice or
// when the root is not a readable directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.New("watcher already started")
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %q is not a directory", w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fw = fw

	dirs, err := w.addDirsRecursive(w.root)
	if err != nil {
		_ = fw.Close()
		w.fw = nil
		return err
	}

	w.started = true
	w.active.Store(true)
	w.wg.Add(2)
	go w.watchLoop()
	go w.flushLoop()

	w.logger.Info("watcher started",
		logging.String(logging.FieldPath, w.root),
		logging.Int("dirs", dirs),
		logging.Duration("debounce", w.debounce))
	return nil
}

// Stop halts event delivery. After Stop returns no further callback
// invocations occur. Safe to call multiple times or before Start.
func (w *Watcher) Stop() {
	w.shutdown()
	w.wg.Wait()
	w.active.Store(false)
}

func (w *Watcher) shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		fw := w.fw
		w.mu.Unlock()
		if fw != nil {
			_ = fw.Close()
		}
	})
}

// Active reports whether the watcher is currently delivering notifications.
func (w *Watcher) Active() bool {
	return w.active.Load()
}

// Err returns ErrWatchRootLost after the root disappeared, nil otherwise.
func (w *Watcher) Err() error {
	if w.rootLost.Load() {
		return ErrWatchRootLost
	}
	return nil
}

func (w *Watcher) addDirsRecursive(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory",
				logging.String(logging.FieldPath, path),
				logging.Error(err))
			return fs.SkipDir
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("watch %q: %w", root, err)
	}
	return count, nil
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				w.markRootLost()
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				w.markRootLost()
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if path == w.root {
			w.markRootLost()
			return
		}
		w.record(path, ActionDeleted)
		return
	}

	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(path)
		if err != nil {
			// Raced deletion; the remove event will follow or the path never
			// materialized. Either way there is nothing to index.
			return
		}
		if info.IsDir() {
			if _, err := w.addDirsRecursive(path); err != nil {
				w.logger.Warn("failed to watch new directory",
					logging.String(logging.FieldPath, path),
					logging.Error(err))
			}
			w.recordTree(path)
			return
		}
		if w.filter(path) {
			w.record(path, ActionCreated)
		}
		return
	}

	if event.Op&fsnotify.Write != 0 {
		if w.filter(path) {
			w.record(path, ActionModified)
		}
	}
}

// recordTree emits created notifications for files already present inside a
// newly created directory, which can be written before the watch is in place.
func (w *Watcher) recordTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.filter(path) {
			w.record(path, ActionCreated)
		}
		return nil
	})
}

// record stores the latest action for a path and arms the flush timer. The
// timer is never reset while armed: a burst of events extends the batch, not
// the wait, so churn on one path cannot starve another path's delivery.
func (w *Watcher) record(path string, action Action) {
	w.mu.Lock()
	w.pending[path] = action
	if !w.timerArmed {
		w.timerArmed = true
		if w.timer == nil {
			w.timer = time.AfterFunc(w.debounce, w.signalFlush)
		} else {
			w.timer.Reset(w.debounce)
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) signalFlush() {
	w.mu.Lock()
	w.timerArmed = false
	w.mu.Unlock()
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) flushLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.flushCh:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]Action)
	w.mu.Unlock()

	for path, action := range batch {
		select {
		case <-w.done:
			return
		default:
		}
		w.onEvent(Notification{Path: path, Action: action})
	}
}

func (w *Watcher) markRootLost() {
	if w.rootLost.Swap(true) {
		return
	}
	w.active.Store(false)
	w.logger.Warn("watch root lost",
		logging.String(logging.FieldPath, w.root),
		logging.String(logging.FieldEventType, "watch_root_lost"),
		logging.String(logging.FieldImpact, "incremental index updates stopped"),
		logging.String(logging.FieldErrorHint, "restart indexing once the root is available again"))
	go w.shutdown()
}
