package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"

	"tecscanner/internal/fileutil"
	"tecscanner/internal/logging"
)

// File names inside the recordings directory.
const (
	LogFileName     = "recordings.json"
	ArchiveFileName = "recordings_archive.json"
)

// DefaultMountTable is the kernel's per-process mount table.
const DefaultMountTable = "/proc/self/mountinfo"

// Mount describes a resolved removable drive and its recordings layout.
type Mount struct {
	Path          string
	RecordingsDir string
	LogsDir       string
}

// LogPath returns the live recordings log location.
func (m Mount) LogPath() string { return filepath.Join(m.RecordingsDir, LogFileName) }

// ArchivePath returns the overflow archive location.
func (m Mount) ArchivePath() string { return filepath.Join(m.RecordingsDir, ArchiveFileName) }

// Options configures a Locator.
type Options struct {
	Roots         []string
	MountTable    string
	RecordingsDir string
	LogsDir       string
}

// Locator resolves the first writable mount point below a configured root.
type Locator struct {
	roots         []string
	mountTable    string
	recordingsDir string
	logsDir       string
	logger        *slog.Logger
	writable      func(path string) bool
	onChange      func(Mount, bool)

	mu      sync.Mutex
	current string
}

// NewLocator builds a Locator. Empty fields fall back to /proc/self/mountinfo and the
// recordings/logs directory names.
func NewLocator(opts Options, logger *slog.Logger) *Locator {
	table := strings.TrimSpace(opts.MountTable)
	if table == "" {
		table = DefaultMountTable
	}
	recordings := strings.TrimSpace(opts.RecordingsDir)
	if recordings == "" {
		recordings = "recordings"
	}
	logs := strings.TrimSpace(opts.LogsDir)
	if logs == "" {
		logs = "logs"
	}
	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		if root = strings.TrimSpace(root); root != "" {
			roots = append(roots, filepath.Clean(root))
		}
	}
	return &Locator{
		roots:         roots,
		mountTable:    table,
		recordingsDir: recordings,
		logsDir:       logs,
		logger:        logging.NewComponentLogger(logger, "storage"),
		writable:      isWritable,
	}
}

// OnChange registers fn to run whenever the resolved mount changes. fn is
// called without internal locks held and receives ok=false on removal.
func (l *Locator) OnChange(fn func(Mount, bool)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Resolve scans the mount table and returns the first writable mount below a
// configured root. It never fails: an unreadable table or no match yields
// ok=false. When a different mount than last time is observed, its
// recordings directory and an empty log file are created.
func (l *Locator) Resolve() (Mount, bool) {
	if l == nil {
		return Mount{}, false
	}
	path := l.find()

	l.mu.Lock()
	previous := l.current
	l.current = path
	onChange := l.onChange
	l.mu.Unlock()

	if path == "" {
		if previous != "" {
			l.logger.Info("removable storage no longer available",
				logging.String(logging.FieldEventType, "storage_removed"),
				logging.Mount(previous),
			)
			if onChange != nil {
				onChange(Mount{}, false)
			}
		}
		return Mount{}, false
	}

	mount := l.mountFor(path)
	if path != previous {
		if err := prepare(mount); err != nil {
			logging.WarnWithContext(l.logger, "failed to prepare recordings directory", "storage_prepare_failed",
				logging.Error(err),
				logging.Mount(path),
				logging.String(logging.FieldErrorHint, "check that the drive is not mounted read-only"),
				logging.String(logging.FieldImpact, "recordings log may be unavailable"),
			)
		} else {
			l.logger.Info("removable storage detected",
				logging.String(logging.FieldEventType, "storage_detected"),
				logging.Mount(path),
			)
		}
		if onChange != nil {
			onChange(mount, true)
		}
	}
	return mount, true
}

// Current returns the mount observed by the most recent Resolve.
func (l *Locator) Current() (Mount, bool) {
	if l == nil {
		return Mount{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == "" {
		return Mount{}, false
	}
	return l.mountFor(l.current), true
}

func (l *Locator) mountFor(path string) Mount {
	return Mount{
		Path:          path,
		RecordingsDir: filepath.Join(path, l.recordingsDir),
		LogsDir:       filepath.Join(path, l.logsDir),
	}
}

func (l *Locator) find() string {
	if len(l.roots) == 0 {
		return ""
	}
	points, err := readMounts(l.mountTable, l.roots)
	if err != nil {
		l.logger.Debug("mount table unreadable", logging.Error(err), logging.String("mount_table", l.mountTable))
		return ""
	}
	for _, point := range points {
		if l.writable(point) {
			return point
		}
	}
	return ""
}

func prepare(m Mount) error {
	if err := os.MkdirAll(m.RecordingsDir, 0o755); err != nil {
		return err
	}
	return fileutil.EnsureFile(m.LogPath(), []byte("[]"))
}

func isWritable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

// readMounts returns the mount points below any of roots from a
// /proc/self/mountinfo style file, in table order.
func readMounts(table string, roots []string) ([]string, error) {
	file, err := os.Open(table)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	infos, err := mountinfo.GetMountsFromReader(file, underAny(roots))
	if err != nil {
		return nil, err
	}
	points := make([]string, 0, len(infos))
	for _, info := range infos {
		points = append(points, info.Mountpoint)
	}
	return points, nil
}

// underAny keeps mounts that are a root or sit below one.
func underAny(roots []string) mountinfo.FilterFunc {
	filters := make([]mountinfo.FilterFunc, 0, len(roots))
	for _, root := range roots {
		filters = append(filters, mountinfo.PrefixFilter(root))
	}
	return func(info *mountinfo.Info) (skip, stop bool) {
		for _, filter := range filters {
			if skip, _ := filter(info); !skip {
				return false, false
			}
		}
		return true, false
	}
}
