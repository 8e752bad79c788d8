package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tecscanner/internal/config"
	"tecscanner/internal/deps"
	"tecscanner/internal/journal"
	"tecscanner/internal/logging"
	"tecscanner/internal/metrics"
	"tecscanner/internal/recorder"
	"tecscanner/internal/storage"
)

// mountSettleDelay is how long to wait after a block device event before
// re-reading the mount table; automounters mount shortly after the kernel
// reports the partition.
const mountSettleDelay = 2 * time.Second

// Deps carries the daemon's collaborators. Controller is required.
type Deps struct {
	Controller *recorder.Controller
	Journal    *journal.Store
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
}

// Daemon owns the recording controller for the lifetime of the process and
// enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	controller *recorder.Controller
	journal    *journal.Store
	metrics    *metrics.Recorder
	watcher    *storage.Watcher
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	settle   *time.Timer
	running  atomic.Bool
	cancel   context.CancelFunc
	closeErr error
	closed   bool
}

// Info summarizes daemon runtime state.
type Info struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	LockPath     string `json:"lock_path"`
	SocketPath   string `json:"socket_path"`
	JournalPath  string `json:"journal_path,omitempty"`
	APIAddress   string `json:"api_address,omitempty"`
	WatchingUdev bool   `json:"watching_udev"`
}

// New constructs a daemon around an already built controller.
func New(cfg *config.Config, d Deps) (*Daemon, error) {
	if cfg == nil || d.Controller == nil {
		return nil, errors.New("daemon requires config and controller")
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	daemon := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		controller: d.Controller,
		journal:    d.Journal,
		metrics:    d.Metrics,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	if cfg.Storage.WatchUdev {
		daemon.watcher = storage.NewWatcher(logger, daemon.handleBlockEvent)
	}
	api, err := newAPIServer(cfg, daemon, logger)
	if err != nil {
		return nil, err
	}
	daemon.api = api
	return daemon, nil
}

// Start acquires the instance lock and starts the watcher and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tecscanner daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			logging.WarnWithContext(d.logger, "storage watcher unavailable", "storage_watcher_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "drive changes are noticed on the next request"),
			)
		}
	}

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("tecscanner daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops the watcher and API and releases the instance lock. An active
// recording is left running; Close ends it.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	if d.settle != nil {
		d.settle.Stop()
		d.settle = nil
	}
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.watcher.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("tecscanner daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon, finalizes any active session and closes the
// journal. It is safe to call more than once.
func (d *Daemon) Close() error {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.closeErr
	}
	d.closed = true
	d.controller.Close()
	if d.journal != nil {
		d.closeErr = d.journal.Close()
	}
	return d.closeErr
}

// Controller returns the recording controller.
func (d *Daemon) Controller() *recorder.Controller {
	return d.controller
}

// History returns journaled sessions, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]journal.Record, error) {
	if d.journal == nil {
		return nil, errors.New("session journal unavailable")
	}
	return d.journal.Recent(ctx, limit)
}

// Dependencies reports availability of the configured executables.
func (d *Daemon) Dependencies() []deps.Status {
	return deps.CheckBinaries(deps.Requirements(d.cfg))
}

// Info returns daemon runtime information.
func (d *Daemon) Info() Info {
	info := Info{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockPath:     d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIAddress:   d.api.address(),
		WatchingUdev: d.watcher.Running(),
	}
	if d.journal != nil {
		info.JournalPath = d.journal.Path()
	}
	return info
}

func (d *Daemon) handleBlockEvent(action, device string) {
	d.logger.Debug("block device event",
		logging.String("action", action),
		logging.String("device", device),
	)
	d.controller.RefreshStorage()

	if action == "remove" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settle != nil {
		d.settle.Stop()
	}
	d.settle = time.AfterFunc(mountSettleDelay, d.controller.RefreshStorage)
}
