package recorder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tecscanner/internal/capture"
	"tecscanner/internal/deps"
	"tecscanner/internal/logging"
	"tecscanner/internal/logs"
	"tecscanner/internal/presence"
	"tecscanner/internal/procexec"
	"tecscanner/internal/sessionlog"
	"tecscanner/internal/storage"
)

// Observer receives controller telemetry. Implementations must not block.
type Observer interface {
	capture.Observer
	SessionFinished(result string)
	LogWriteFailed()
	LidarPresence(detected bool)
}

// Journal records finished sessions outside the removable drive.
type Journal interface {
	Record(ctx context.Context, mount string, entry sessionlog.Entry) error
}

// Deps carries the controller's collaborators.
type Deps struct {
	Locator  *storage.Locator
	Runner   procexec.Runner
	Journal  Journal
	Observer Observer
	Logger   *slog.Logger
	// LookPath resolves the capture command; defaults to a PATH lookup.
	LookPath func(command string) (string, bool)
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type session struct {
	mount        storage.Mount
	dir          string
	name         string
	started      time.Time
	frames       int
	currentFile  string
	lastProgress time.Time
	finalized    bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *session) signalStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *session) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Controller coordinates storage, presence, capture and logging for at most
// one recording session at a time.
type Controller struct {
	opts              Options
	logger            *slog.Logger
	locator           *storage.Locator
	log               *sessionlog.Log
	loop              *capture.Loop
	detector          *presence.Detector
	journal           Journal
	observer          Observer
	now               func() time.Time
	runCtx            context.Context
	recorderAvailable bool

	mu            sync.Mutex
	state         State
	session       *session
	lidarDetected bool
	logErr        bool
	archiveErr    bool
	closed        bool
	// pending counts Start calls between the first and second lock.
	pending int
}

// New builds a controller and starts its presence detector. The capture
// command is resolved once; when it is missing the controller refuses every
// Start with CodeNoRecorder until the process restarts. Callers must Close
// the controller.
func New(ctx context.Context, opts Options, d Deps) (*Controller, error) {
	if d.Locator == nil {
		return nil, errors.New("recorder: storage locator required")
	}
	if d.Runner == nil {
		d.Runner = procexec.Exec{}
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.LookPath == nil {
		d.LookPath = deps.Resolve
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if opts.StreamingWindow <= 0 {
		opts.StreamingWindow = 2 * time.Second
	}

	c := &Controller{
		opts:     opts,
		logger:   logging.NewComponentLogger(d.Logger, "recorder"),
		locator:  d.Locator,
		log:      sessionlog.New(sessionlog.Options{Cap: opts.LogCap, Archive: opts.Archive}, d.Logger),
		journal:  d.Journal,
		observer: d.Observer,
		now:      d.Clock,
		runCtx:   context.WithoutCancel(ctx),
		state:    StateIdle,
	}

	command, ok := d.LookPath(opts.CaptureCommand)
	c.recorderAvailable = ok
	if !ok {
		logging.ErrorWithContext(c.logger, "recorder command not found; recordings disabled", "recorder_missing",
			logging.String("command", opts.CaptureCommand),
			logging.String(logging.FieldErrorHint, "install the capture tool or set recorder.capture_command"),
		)
		command = ""
	}

	convert := ""
	if strings.TrimSpace(opts.ConvertCommand) != "" {
		if resolved, found := d.LookPath(opts.ConvertCommand); found {
			convert = resolved
		} else {
			logging.WarnWithContext(c.logger, "converter command not found", "converter_missing",
				logging.String("command", opts.ConvertCommand),
				logging.String(logging.FieldErrorHint, "install the converter or clear recorder.convert_command"),
				logging.String(logging.FieldImpact, "frames are saved without companion exports"),
			)
		}
	}

	c.loop = capture.New(capture.Options{
		Command:         command,
		ConvertCommand:  convert,
		FrameExtension:  opts.FrameExtension,
		ExportExtension: opts.ExportExtension,
		MaxFailures:     opts.MaxFailures,
		RetryDelay:      opts.RetryDelay,
	}, d.Runner, d.Observer, d.Logger)

	c.detector = presence.New(presence.Options{
		Command:  command,
		Interval: opts.PollInterval,
		Timeout:  opts.ProbeTimeout,
	}, d.Runner, c.setLidar, d.Logger)

	if c.recorderAvailable {
		if err := c.detector.Start(ctx); err != nil {
			return nil, fmt.Errorf("start presence detector: %w", err)
		}
	}

	c.locator.Resolve()
	return c, nil
}

// RecorderAvailable reports whether the capture command was found.
func (c *Controller) RecorderAvailable() bool {
	return c.recorderAvailable
}

// Start begins a recording session. It returns (true, CodeNone) once the
// session directory exists and the capture loop has launched.
func (c *Controller) Start(ctx context.Context) (bool, ErrorCode) {
	c.mu.Lock()
	if code := c.precheckLocked(); code != CodeNone {
		c.mu.Unlock()
		return false, code
	}
	if _, ok := c.locator.Resolve(); !ok {
		c.mu.Unlock()
		return false, CodeNoStorage
	}
	detected := c.lidarDetected
	c.pending++
	c.state = StateStarting
	c.mu.Unlock()

	if !detected {
		// The sensor may have been plugged in since the last poll.
		detected = c.detector.Probe(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending--
	c.lidarDetected = detected
	c.observer.LidarPresence(detected)

	fail := func(code ErrorCode) (bool, ErrorCode) {
		if c.session == nil {
			c.state = c.restingStateLocked()
		}
		c.logger.Info("recording not started",
			logging.String(logging.FieldEventType, "session_start_rejected"),
			logging.String(logging.FieldCode, string(code)),
		)
		return false, code
	}

	if !detected {
		return fail(CodeNoLidar)
	}
	if code := c.precheckLocked(); code != CodeNone {
		return fail(code)
	}
	mount, ok := c.locator.Resolve()
	if !ok {
		return fail(CodeNoStorage)
	}

	started := c.now().UTC()
	dir, err := createSessionDir(mount.RecordingsDir, started)
	if err != nil {
		logging.ErrorWithContext(c.logger, "failed to create session directory", "session_dir_failed",
			logging.Error(err),
			logging.Mount(mount.Path),
			logging.String(logging.FieldErrorHint, "check free space and write access on the drive"),
		)
		return fail(CodeSpawnFailed)
	}

	sess := &session{
		mount:   mount,
		dir:     dir,
		name:    filepath.Base(dir),
		started: started,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.session = sess
	c.state = StateRecording
	go c.run(sess)

	c.logger.Info("recording started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.Session(sess.name),
		logging.Mount(mount.Path),
	)
	return true, CodeNone
}

// restingStateLocked is the state to report when no session is active.
func (c *Controller) restingStateLocked() State {
	if c.pending > 0 {
		return StateStarting
	}
	return StateIdle
}

func (c *Controller) precheckLocked() ErrorCode {
	if !c.recorderAvailable {
		return CodeNoRecorder
	}
	if c.closed {
		return CodeSpawnFailed
	}
	if c.session != nil {
		return CodeAlreadyActive
	}
	return CodeNone
}

// Stop ends the active session and returns once its log entry has been
// written. It returns false when no session is active.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return false
	}
	c.state = StateStopping
	c.mu.Unlock()

	sess.signalStop()
	<-sess.done
	return true
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	mount, present := c.locator.Resolve()
	var free *uint64
	if present {
		if usage, err := storage.StatUsage(mount.Path); err == nil {
			free = &usage.FreeBytes
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked()

	st := Status{
		Version:           StatusVersion,
		State:             c.state,
		StoragePresent:    present,
		LidarDetected:     c.lidarDetected,
		LogError:          c.logErr,
		ArchiveError:      c.archiveErr,
		RecorderAvailable: c.recorderAvailable,
	}
	if present {
		st.StoragePath = stringPtr(mount.Path)
		st.StorageFreeBytes = free
	}

	sess := c.session
	if sess == nil {
		return st
	}
	st.Recording = true
	st.CurrentSession = stringPtr(sess.name)
	started := sess.started
	st.Started = &started
	st.FramesRecorded = sess.frames
	if sess.currentFile != "" {
		st.CurrentFile = stringPtr(filepath.Base(sess.currentFile))
		if info, err := os.Stat(sess.currentFile); err == nil {
			size := info.Size()
			st.CurrentSize = &size
		}
	}
	if !sess.lastProgress.IsZero() && c.now().Sub(sess.lastProgress) < c.opts.StreamingWindow {
		st.LidarStreaming = true
	}
	return st
}

// reconcileLocked clears a session whose capture goroutine exited without
// clearing it, so a crashed loop never reads as recording.
func (c *Controller) reconcileLocked() {
	sess := c.session
	if sess == nil || !sess.exited() {
		return
	}
	logging.WarnWithContext(c.logger, "capture loop exited without finalizing; resetting to idle", "session_reconciled",
		logging.Session(sess.name),
		logging.String(logging.FieldImpact, "session may be missing from the recordings log"),
	)
	c.session = nil
	c.state = c.restingStateLocked()
}

// List returns the recordings log of the currently mounted drive.
func (c *Controller) List() []sessionlog.Entry {
	mount, ok := c.locator.Resolve()
	if !ok {
		return []sessionlog.Entry{}
	}
	entries, err := c.log.List(mount.RecordingsDir)
	if err != nil {
		c.mu.Lock()
		c.logErr = true
		c.mu.Unlock()
		c.observer.LogWriteFailed()
	}
	return entries
}

// GetLog returns the last lines of a diagnostic log on the drive as text.
// lines <= 0 returns the whole file.
func (c *Controller) GetLog(name string, lines int) (string, error) {
	result, err := c.TailLog(name, logs.TailOptions{Offset: -1, Limit: lines})
	if err != nil {
		return "", err
	}
	if len(result.Lines) == 0 {
		return "", nil
	}
	return strings.Join(result.Lines, "\n") + "\n", nil
}

// TailLog reads a diagnostic log on the drive from an offset. Names must be
// plain file names inside the logs directory.
func (c *Controller) TailLog(name string, opts logs.TailOptions) (logs.TailResult, error) {
	name = strings.TrimSpace(name)
	if !validLogName(name) {
		return logs.TailResult{}, ErrLogNotFound
	}
	mount, ok := c.locator.Resolve()
	if !ok {
		return logs.TailResult{}, ErrLogNotFound
	}
	result, err := logs.Tail(filepath.Join(mount.LogsDir, name), opts)
	if err != nil {
		if logs.IsNotExist(err) {
			return logs.TailResult{}, ErrLogNotFound
		}
		return logs.TailResult{}, fmt.Errorf("read log %s: %w", name, err)
	}
	return result, nil
}

func validLogName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// RefreshStorage re-resolves the mount, typically after a hot-plug event.
func (c *Controller) RefreshStorage() {
	c.locator.Resolve()
}

// Close stops any active session and the presence detector. It is safe to
// call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.Stop()
	c.detector.Stop()
}

func (c *Controller) setLidar(detected bool) {
	c.mu.Lock()
	c.lidarDetected = detected
	c.mu.Unlock()
	c.observer.LidarPresence(detected)
}

func (c *Controller) run(sess *session) {
	defer close(sess.done)

	var outcome capture.Outcome
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(c.logger, "capture loop panicked", "capture_panic",
				logging.Session(sess.name),
				logging.Any("panic", r),
			)
			outcome.Err = fmt.Errorf("capture loop panic: %v", r)
		}
		c.finalize(sess, outcome)
	}()

	outcome = c.loop.Run(c.runCtx, sess.dir, sess.stop, func(frame capture.Frame) {
		c.progress(sess, frame)
	})
}

func (c *Controller) progress(sess *session, frame capture.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != sess {
		return
	}
	sess.frames = frame.Index + 1
	sess.currentFile = frame.Path
	sess.lastProgress = c.now()
}

// finalize persists the session's log entry and returns the controller to
// idle. It runs on the capture goroutine after the loop has returned and is a
// no-op on repeated calls.
func (c *Controller) finalize(sess *session, outcome capture.Outcome) {
	c.mu.Lock()
	if sess.finalized {
		c.mu.Unlock()
		return
	}
	sess.finalized = true
	if c.session == sess {
		c.state = StateStopping
	}
	entry := sessionlog.Entry{
		Folder:  sess.name,
		Frames:  sess.frames,
		Started: sess.started,
		Stopped: c.now().UTC(),
	}
	if entry.Stopped.Before(entry.Started) {
		entry.Stopped = entry.Started
	}
	if outcome.Failed() {
		entry.Error = string(CodeSaveFailed)
	}
	c.mu.Unlock()

	result := c.log.Append(sess.mount.RecordingsDir, entry)
	if c.journal != nil {
		if err := c.journal.Record(c.runCtx, sess.mount.Path, entry); err != nil {
			logging.WarnWithContext(c.logger, "failed to record session in journal", "journal_write_failed",
				logging.Error(err),
				logging.Session(sess.name),
				logging.String(logging.FieldImpact, "session missing from local history"),
			)
		}
	}

	c.mu.Lock()
	c.logErr = result.LogErr != nil
	if result.ArchiveErr != nil {
		c.archiveErr = true
	} else if result.Archived > 0 {
		c.archiveErr = false
	}
	if c.session == sess {
		c.session = nil
		c.state = c.restingStateLocked()
	}
	c.mu.Unlock()

	if result.LogErr != nil {
		c.observer.LogWriteFailed()
	}

	outcomeLabel := "completed"
	if entry.Error != "" {
		outcomeLabel = entry.Error
	}
	c.observer.SessionFinished(outcomeLabel)

	attrs := []logging.Attr{
		logging.Session(sess.name),
		logging.Int("frames", entry.Frames),
		logging.Duration("duration", entry.Duration()),
		logging.String("result", outcomeLabel),
	}
	if outcome.Err != nil {
		logging.ErrorWithContext(c.logger, "recording terminated", "session_failed",
			append(attrs, logging.Error(outcome.Err), logging.String(logging.FieldErrorHint, "check the sensor connection and the capture tool output"))...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "session_finished"))
	c.logger.Info("recording stopped", logging.Args(attrs...)...)
}

func createSessionDir(recordingsDir string, started time.Time) (string, error) {
	if err := os.MkdirAll(recordingsDir, 0o755); err != nil {
		return "", err
	}
	base := "session_" + started.UTC().Format("20060102_150405")
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		dir := filepath.Join(recordingsDir, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free session directory name for %s", base)
}

type nopObserver struct{}

func (nopObserver) FrameCaptured(time.Duration) {}

func (nopObserver) CaptureFailed() {}

func (nopObserver) SessionFinished(string) {}

func (nopObserver) LogWriteFailed() {}

func (nopObserver) LidarPresence(bool) {}
