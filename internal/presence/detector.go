// Package presence polls the capture executable in check mode and reports
// whether the sensor is reachable.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tecscanner/internal/logging"
	"tecscanner/internal/procexec"
)

// CheckFlag is the argument that puts the capture executable in probe mode.
const CheckFlag = "--check"

// Options configures a Detector.
type Options struct {
	Command  string
	Interval time.Duration
	Timeout  time.Duration
}

// Detector periodically probes for the sensor and hands each result to a
// report callback. The callback owns the cached value; Detector only tracks
// transitions for logging.
type Detector struct {
	command  string
	interval time.Duration
	timeout  time.Duration
	runner   procexec.Runner
	report   func(bool)
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	last    *bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Detector. A nil runner uses procexec.Exec.
func New(opts Options, runner procexec.Runner, report func(bool), logger *slog.Logger) *Detector {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if runner == nil {
		runner = procexec.Exec{}
	}
	return &Detector{
		command:  strings.TrimSpace(opts.Command),
		interval: interval,
		timeout:  timeout,
		runner:   runner,
		report:   report,
		logger:   logging.NewComponentLogger(logger, "presence"),
	}
}

// Probe runs one bounded check. Any failure to run the command counts as
// "not detected".
func (d *Detector) Probe(ctx context.Context) bool {
	if d == nil || d.command == "" {
		return false
	}
	res, err := d.runner.Run(ctx, d.timeout, d.command, CheckFlag)
	detected := err == nil && res.Success()
	if err != nil {
		d.logger.Debug("presence probe failed", logging.Error(err))
	}
	d.noteTransition(detected)
	return detected
}

// Start launches the polling goroutine. The first probe runs immediately.
func (d *Detector) Start(ctx context.Context) error {
	if d == nil {
		return errors.New("presence detector unavailable")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return errors.New("presence detector already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true

	d.wg.Add(1)
	go d.loop(runCtx)
	return nil
}

// Stop cancels polling and waits for the goroutine to exit. Safe to call
// more than once.
func (d *Detector) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// Running reports whether the poller is active.
func (d *Detector) Running() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Detector) loop(ctx context.Context) {
	defer d.wg.Done()

	d.poll(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Detector) poll(ctx context.Context) {
	detected := d.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	if d.report != nil {
		d.report(detected)
	}
}

func (d *Detector) noteTransition(detected bool) {
	d.mu.Lock()
	changed := d.last == nil || *d.last != detected
	d.last = &detected
	d.mu.Unlock()

	if !changed {
		return
	}
	if detected {
		d.logger.Info("lidar detected", logging.String(logging.FieldEventType, "lidar_detected"))
		return
	}
	d.logger.Info("lidar not detected",
		logging.String(logging.FieldEventType, "lidar_absent"),
		logging.String(logging.FieldErrorHint, "check the sensor cable and power"),
	)
}
