package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tecscanner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The mount table starts empty, the udev watcher is off and the API binds an
// ephemeral loopback port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.MountRoots = []string{filepath.Join(base, "media")}
	cfgVal.Storage.MountTable = filepath.Join(base, "mounts")
	cfgVal.Storage.WatchUdev = false
	cfgVal.Recorder.RetryDelayMillis = 0
	cfgVal.Presence.PollInterval = 3600

	if err := os.MkdirAll(cfgVal.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir state dir: %v", err)
	}
	if err := os.WriteFile(cfgVal.Storage.MountTable, []byte(procMountLine), 0o644); err != nil {
		t.Fatalf("write mount table: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMountedDrive creates a drive directory below the first mount root and
// lists it in the mount table.
func WithMountedDrive() ConfigOption {
	return func(b *configBuilder) {
		MountDrive(b.t, b.cfg)
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the configured capture command
// is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Recorder.CaptureCommand}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// DrivePath returns the drive directory used by MountDrive.
func DrivePath(cfg *config.Config) string {
	return filepath.Join(cfg.Storage.MountRoots[0], "usb")
}

// MountDrive creates the test drive and lists it in the mount table.
func MountDrive(t testing.TB, cfg *config.Config) string {
	t.Helper()
	drive := DrivePath(cfg)
	if err := os.MkdirAll(drive, 0o755); err != nil {
		t.Fatalf("mkdir drive: %v", err)
	}
	line := procMountLine + "40 25 8:1 / " + drive + " rw,relatime - vfat /dev/sda1 rw\n"
	if err := os.WriteFile(cfg.Storage.MountTable, []byte(line), 0o644); err != nil {
		t.Fatalf("write mount table: %v", err)
	}
	return drive
}

// procMountLine is a mountinfo record that never matches a drive root.
const procMountLine = "22 1 0:21 / /proc rw,nosuid - proc proc rw\n"

// UnmountDrive removes the drive from the mount table, leaving its files.
func UnmountDrive(t testing.TB, cfg *config.Config) {
	t.Helper()
	if err := os.WriteFile(cfg.Storage.MountTable, []byte(procMountLine), 0o644); err != nil {
		t.Fatalf("write mount table: %v", err)
	}
}

// WriteDriveLog writes a diagnostic log file into the drive's logs directory.
func WriteDriveLog(t testing.TB, cfg *config.Config, name, content string) string {
	t.Helper()
	dir := filepath.Join(DrivePath(cfg), cfg.Storage.LogsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir logs dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
