package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tecscanner/internal/config"
	"tecscanner/internal/daemon"
	"tecscanner/internal/deps"
	"tecscanner/internal/ipc"
	"tecscanner/internal/journal"
	"tecscanner/internal/logging"
	"tecscanner/internal/metrics"
	"tecscanner/internal/notifications"
	"tecscanner/internal/recorder"
	"tecscanner/internal/storage"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the tecscanner daemon runtime loop and blocks until SIGINT or
// SIGTERM. An active session is finalized before Run returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	sink := logging.NewStorageSink(logging.SinkOptions{
		MaxSizeMB:     cfg.Logging.FileMaxMB,
		MaxBackups:    cfg.Logging.FileBackups,
		RetentionDays: cfg.Logging.RetentionDays,
	})
	defer sink.Close()

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		Extra:       sink,
		Development: opts.Development,
		RunID:       runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := journal.Open(signalCtx, cfg.JournalPath())
	if err != nil {
		logger.Error("open session journal", logging.Error(err))
		return err
	}

	locator := storage.NewLocator(storage.Options{
		Roots:         cfg.Storage.MountRoots,
		MountTable:    cfg.Storage.MountTable,
		RecordingsDir: cfg.Storage.RecordingsDir,
		LogsDir:       cfg.Storage.LogsDir,
	}, logger)
	locator.OnChange(followDrive(sink, logger))

	collector := metrics.New(true)
	notifier := notifications.NewObserver(
		notifications.NewService(cfg),
		time.Duration(cfg.Notifications.LogAlertCooldown)*time.Second,
		logger,
	)
	defer notifier.Wait()
	controller, err := recorder.New(signalCtx, recorder.OptionsFromConfig(cfg), recorder.Deps{
		Locator:  locator,
		Journal:  store,
		Observer: recorder.Observers{collector, notifier},
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create recorder: %w", err)
	}

	d, err := daemon.New(cfg, daemon.Deps{
		Controller: controller,
		Journal:    store,
		Metrics:    collector,
		Logger:     logger,
	})
	if err != nil {
		controller.Close()
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	info := d.Info()
	logger.Info("control surfaces ready",
		logging.String(logging.FieldEventType, "control_ready"),
		logging.Int("pid", info.PID),
		logging.String("socket", cfg.SocketPath()),
		logging.String("api_address", info.APIAddress),
		logging.Bool("watching_udev", info.WatchingUdev),
		logging.Bool("notifications", cfg.Notifications.NtfyTopic != ""),
	)

	<-signalCtx.Done()
	logger.Info("tecscanner daemon shutting down", logging.String(logging.FieldEventType, "daemon_stopping"))
	return nil
}

// followDrive keeps the on-drive process log attached to whichever drive is
// currently resolved.
func followDrive(sink *logging.StorageSink, logger *slog.Logger) func(storage.Mount, bool) {
	logger = logging.NewComponentLogger(logger, "daemon")
	return func(m storage.Mount, ok bool) {
		if !ok {
			sink.Detach()
			return
		}
		if err := sink.Attach(m.LogsDir); err != nil {
			logging.WarnWithContext(logger, "attach drive log failed", "drive_log_unavailable",
				logging.Error(err),
				logging.String("dir", m.LogsDir),
				logging.String(logging.FieldImpact, "process log is not written to the drive"),
			)
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, st := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(st.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", st.Available),
			logging.String(key+"_binary", st.Command),
		)
	}
	attrs = append(attrs,
		logging.String("mount_roots", strings.Join(cfg.Storage.MountRoots, ",")),
		logging.Int("log_entry_cap", cfg.Log.EntryCap),
		logging.Bool("log_archive", cfg.Log.Archive),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
