package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"trove/internal/config"
	"trove/internal/index"
	"trove/internal/logging"
	"trove/internal/state"
	"trove/internal/watcher"
)

// Version reported over RPC and by the CLI.
const Version = "0.1.0"

var (
	// ErrAlreadyRunning indicates a live daemon instance already owns the
	// state directory.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrNotRunning indicates the requested operation needs a running daemon.
	ErrNotRunning = errors.New("daemon not running")
	// ErrIndexingActive indicates a scan is already in progress.
	ErrIndexingActive = errors.New("indexing already in progress")
)

// Phase tracks the daemon lifecycle.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseRunning
	PhaseShuttingDown
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not started"
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting down"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Daemon coordinates the watcher, the stores, and single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	index  *index.Store
	state  *state.Store
	marker *state.Marker

	lockPath string
	lock     *flock.Flock

	// mu guards the lifecycle fields below. It is never held while calling
	// into a store or the watcher.
	mu            sync.Mutex
	phase         Phase
	transitioning bool
	startedAt     time.Time
	watch         *watcher.Watcher
	scanCancel    context.CancelFunc

	scanWG sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
}

// Status is a point-in-time snapshot of daemon runtime information.
type Status struct {
	Running       bool
	Phase         string
	PID           int
	Indexing      bool
	WatcherActive bool
	FilesIndexed  int64
	TotalBytes    int64
	LastIndexedAt time.Time
	Uptime        time.Duration
	Degraded      bool
	WatchRoot     string
	IndexDBPath   string
	MarkerPath    string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, indexStore *index.Store, stateStore *state.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || indexStore == nil || stateStore == nil {
		return nil, errors.New("daemon requires config, index store, and state store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		index:    indexStore,
		state:    stateStore,
		marker:   state.NewMarker(cfg.PIDPath()),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan struct{}),
	}, nil
}

// Start transitions the daemon to running: it claims the state directory,
// persists the process marker, and begins watching the configured root.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.beginTransition(); err != nil {
		return err
	}
	defer d.endTransition()

	if d.marker.Alive() {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, d.marker.Read())
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: state directory locked", ErrAlreadyRunning)
	}

	if err := d.marker.Write(0); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("persist process marker: %w", err)
	}

	watch := d.startWatcher()

	startedAt := time.Now().UTC()
	if err := d.state.Merge(ctx, map[string]string{
		state.KeyIndexing:  "false",
		state.KeyStartedAt: startedAt.Format(time.RFC3339),
	}); err != nil {
		d.logger.Warn("daemon state not persisted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "status reporting will be degraded"))
	}

	d.mu.Lock()
	d.phase = PhaseRunning
	d.startedAt = startedAt
	d.watch = watch
	d.mu.Unlock()

	d.logger.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("root", d.cfg.Watch.Root),
		logging.Bool("watcher_active", watch != nil && watch.Active()))
	return nil
}

// startWatcher builds and starts the change watcher. A watcher failure
// degrades the daemon but does not prevent startup.
func (d *Daemon) startWatcher() *watcher.Watcher {
	watch, err := watcher.New(watcher.Options{
		Root:     d.cfg.Watch.Root,
		Debounce: d.cfg.Debounce(),
		Filter:   d.cfg.PathFilter(),
		OnEvent:  d.handleNotification,
		Logger:   d.logger,
	})
	if err == nil {
		err = watch.Start()
	}
	if err != nil {
		d.logger.Warn("change watcher unavailable",
			logging.Error(err),
			logging.String("root", d.cfg.Watch.Root))
		return nil
	}
	return watch
}

// Shutdown stops the watcher, cancels any in-flight scan, records the stop
// timestamp, and removes the process marker. It is safe to call repeatedly.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.phase != PhaseRunning {
		d.mu.Unlock()
		return nil
	}
	d.phase = PhaseShuttingDown
	cancel := d.scanCancel
	d.scanCancel = nil
	watch := d.watch
	d.watch = nil
	d.mu.Unlock()

	d.logger.Info("daemon shutting down")

	if cancel != nil {
		cancel()
	}
	d.scanWG.Wait()

	if watch != nil {
		watch.Stop()
	}

	if err := d.state.Merge(ctx, map[string]string{
		state.KeyIndexing:  "false",
		state.KeyStoppedAt: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		d.logger.Warn("stop timestamp not persisted", logging.Error(err))
	}
	if err := d.marker.Remove(); err != nil {
		d.logger.Warn("process marker not removed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("state lock not released", logging.Error(err))
	}

	d.mu.Lock()
	d.phase = PhaseStopped
	d.startedAt = time.Time{}
	d.mu.Unlock()

	d.logger.Info("daemon stopped")
	d.doneOnce.Do(func() { close(d.done) })
	return nil
}

// Done is closed once the daemon has fully shut down.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Status reports a snapshot without blocking on in-flight indexing.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	phase := d.phase
	startedAt := d.startedAt
	watch := d.watch
	scanning := d.scanCancel != nil
	d.mu.Unlock()

	st := Status{
		Phase:       phase.String(),
		WatchRoot:   d.cfg.Watch.Root,
		IndexDBPath: d.cfg.IndexDBPath(),
		MarkerPath:  d.marker.Path(),
	}

	st.Running = phase == PhaseRunning && d.marker.Alive()
	if st.Running {
		st.PID = d.marker.Read()
		st.Uptime = time.Since(startedAt)
	}
	st.WatcherActive = watch != nil && watch.Active()

	indexing, err := d.state.Indexing(ctx)
	if err != nil {
		st.Degraded = true
		indexing = scanning
		d.logger.Warn("daemon state unreadable", logging.Error(err))
	}
	st.Indexing = indexing

	summary, err := d.index.Stats(ctx)
	if err != nil {
		st.Degraded = true
		d.logger.Warn("index stats unreadable", logging.Error(err))
	} else {
		st.FilesIndexed = summary.Files
		st.TotalBytes = summary.TotalBytes
		st.LastIndexedAt = summary.LastIndexedAt
	}
	return st
}

// Phase returns the current lifecycle phase.
func (d *Daemon) CurrentPhase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Daemon) beginTransition() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.phase {
	case PhaseRunning, PhaseShuttingDown:
		return ErrAlreadyRunning
	}
	if d.transitioning {
		return ErrAlreadyRunning
	}
	d.transitioning = true
	return nil
}

func (d *Daemon) endTransition() {
	d.mu.Lock()
	d.transitioning = false
	d.mu.Unlock()
}

// FormatUptime renders a duration the way status output shows it, e.g.
// "2h 34m" or "51s" for sub-minute uptimes.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
