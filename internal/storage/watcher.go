package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"tecscanner/internal/logging"
)

// Watcher listens for udev block device events and invokes a callback when a
// partition is added, changed or removed. Mount points may appear slightly
// after the kernel event, so callers should treat the callback as a hint to
// re-resolve rather than as proof of a new mount.
type Watcher struct {
	logger  *slog.Logger
	onEvent func(action, device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher that reports block events to onEvent.
func NewWatcher(logger *slog.Logger, onEvent func(action, device string)) *Watcher {
	return &Watcher{
		logger:  logging.NewComponentLogger(logger, "storage-watcher"),
		onEvent: onEvent,
	}
}

// Start connects to the udev netlink socket. Connection failure is logged and
// leaves the watcher idle; storage is still re-resolved on every call.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "drive insertion is noticed on the next request instead of immediately"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, conn, w.quit, w.done)

	w.logger.Info("storage watcher started",
		logging.String(logging.FieldEventType, "storage_watcher_started"),
	)
	return nil
}

// Stop shuts the watcher down and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.quit)
	done := w.done
	conn := w.conn
	w.quit = nil
	w.conn = nil
	w.running = false
	w.mu.Unlock()

	<-done
	if conn != nil {
		_ = conn.Close()
	}
	w.logger.Info("storage watcher stopped",
		logging.String(logging.FieldEventType, "storage_watcher_stopped"),
	)
}

// Running reports whether the watcher is connected.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "drive hot-plug notifications may be delayed"),
			)
		}
	}
}

// buildMatcher matches partition add/change/remove events on the block subsystem.
func buildMatcher() netlink.Matcher {
	action := "add|change|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
		},
	})
	return rules
}

func (w *Watcher) handleEvent(uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" {
		w.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	w.logger.Info("block device event",
		logging.String(logging.FieldEventType, "storage_device_event"),
		logging.String("action", string(uevent.Action)),
		logging.String("device", device),
	)

	if w.onEvent != nil {
		w.onEvent(string(uevent.Action), device)
	}
}

func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if strings.HasPrefix(devname, "/") {
			return devname
		}
		return "/dev/" + devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
