// Package capture drives the external capture executable frame by frame into
// a session directory, retrying transient failures.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tecscanner/internal/logging"
	"tecscanner/internal/procexec"
)

// ErrTooManyFailures is reported when consecutive capture failures exceed the
// configured threshold.
var ErrTooManyFailures = errors.New("capture failed repeatedly")

// Options configures the loop.
type Options struct {
	Command         string
	ConvertCommand  string
	FrameExtension  string
	ExportExtension string
	// MaxFailures is the number of consecutive failures tolerated; the next
	// one terminates the session.
	MaxFailures int
	RetryDelay  time.Duration
}

// Frame describes a successfully captured frame.
type Frame struct {
	Index    int
	Path     string
	Size     int64
	SavedAt  time.Time
	Duration time.Duration
}

// Outcome summarises a finished run.
type Outcome struct {
	Frames   int
	Failures int
	Err      error
}

// Failed reports whether the run terminated because of capture failures.
func (o Outcome) Failed() bool { return o.Err != nil }

// Observer receives per-frame telemetry.
type Observer interface {
	FrameCaptured(elapsed time.Duration)
	CaptureFailed()
}

// Loop runs capture iterations.
type Loop struct {
	opts     Options
	runner   procexec.Runner
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Loop. A nil runner uses procexec.Exec.
func New(opts Options, runner procexec.Runner, observer Observer, logger *slog.Logger) *Loop {
	if runner == nil {
		runner = procexec.Exec{}
	}
	opts.FrameExtension = strings.TrimPrefix(strings.TrimSpace(opts.FrameExtension), ".")
	if opts.FrameExtension == "" {
		opts.FrameExtension = "laz"
	}
	opts.ExportExtension = strings.TrimPrefix(strings.TrimSpace(opts.ExportExtension), ".")
	if opts.ExportExtension == "" {
		opts.ExportExtension = "csv"
	}
	if opts.MaxFailures < 0 {
		opts.MaxFailures = 0
	}
	return &Loop{
		opts:     opts,
		runner:   runner,
		observer: observer,
		logger:   logging.NewComponentLogger(logger, "capture"),
		now:      time.Now,
	}
}

// FrameName returns the zero-padded file name of frame index.
func FrameName(index int, ext string) string {
	return fmt.Sprintf("frame_%06d.%s", index, ext)
}

// Run captures frames into dir until stop is closed or failures exceed the
// threshold. onFrame is called after every saved frame. The stop channel is
// checked before each attempt and during retry waits; an in-flight capture is
// allowed to finish.
func (l *Loop) Run(ctx context.Context, dir string, stop <-chan struct{}, onFrame func(Frame)) Outcome {
	var outcome Outcome
	logger := l.logger.With(logging.Session(filepath.Base(dir)))
	index := 0
	failures := 0

	for {
		if stopped(stop) {
			return outcome
		}

		path := filepath.Join(dir, FrameName(index, l.opts.FrameExtension))
		started := l.now()
		err := l.save(ctx, path)
		if err != nil {
			failures++
			outcome.Failures++
			if l.observer != nil {
				l.observer.CaptureFailed()
			}
			logger.Error("failed to save frame",
				logging.Error(err),
				logging.Frame(index),
				logging.Int("consecutive_failures", failures),
				logging.String(logging.FieldEventType, "frame_save_failed"),
				logging.String(logging.FieldErrorHint, "check the sensor connection and free space on the drive"),
			)
			if failures <= l.opts.MaxFailures {
				if !l.wait(stop) {
					return outcome
				}
				continue
			}
			outcome.Err = fmt.Errorf("%w: %d consecutive failures: %v", ErrTooManyFailures, failures, err)
			return outcome
		}

		failures = 0
		elapsed := l.now().Sub(started)
		if l.observer != nil {
			l.observer.FrameCaptured(elapsed)
		}
		l.export(ctx, logger, path)

		frame := Frame{Index: index, Path: path, SavedAt: l.now(), Duration: elapsed}
		if info, statErr := os.Stat(path); statErr == nil {
			frame.Size = info.Size()
		}
		index++
		outcome.Frames = index
		if onFrame != nil {
			onFrame(frame)
		}
		logger.Debug("frame saved",
			logging.Frame(frame.Index),
			logging.Int64("bytes", frame.Size),
			logging.Duration("elapsed", elapsed),
		)
	}
}

func (l *Loop) save(ctx context.Context, path string) error {
	if strings.TrimSpace(l.opts.Command) == "" {
		return errors.New("capture command not configured")
	}
	res, err := l.runner.Run(ctx, 0, l.opts.Command, path)
	if err != nil {
		return err
	}
	if !res.Success() {
		detail := strings.TrimSpace(string(res.Output))
		if detail != "" {
			return fmt.Errorf("exit status %d: %s", res.ExitCode, detail)
		}
		return fmt.Errorf("exit status %d", res.ExitCode)
	}
	return nil
}

// export runs the converter when configured and the companion file is absent.
// Failures are logged and never affect the session.
func (l *Loop) export(ctx context.Context, logger *slog.Logger, framePath string) {
	command := strings.TrimSpace(l.opts.ConvertCommand)
	if command == "" {
		return
	}
	exportPath := strings.TrimSuffix(framePath, filepath.Ext(framePath)) + "." + l.opts.ExportExtension
	if _, err := os.Stat(exportPath); err == nil {
		return
	}
	res, err := l.runner.Run(ctx, 0, command, framePath, exportPath)
	if err == nil && res.Success() {
		return
	}
	if err == nil {
		err = fmt.Errorf("exit status %d", res.ExitCode)
	}
	logging.WarnWithContext(logger, "frame export failed", "frame_export_failed",
		logging.Error(err),
		logging.String("file", filepath.Base(framePath)),
		logging.String(logging.FieldErrorHint, "check the converter command"),
		logging.String(logging.FieldImpact, "frame kept without companion export"),
	)
}

// wait sleeps for the retry delay and reports false when stop fired first.
func (l *Loop) wait(stop <-chan struct{}) bool {
	if l.opts.RetryDelay <= 0 {
		return !stopped(stop)
	}
	timer := time.NewTimer(l.opts.RetryDelay)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
