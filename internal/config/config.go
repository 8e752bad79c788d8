package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local state locations and control surface bind settings.
type Paths struct {
	StateDir string `toml:"state_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Storage describes where removable media is expected to appear.
type Storage struct {
	MountRoots    []string `toml:"mount_roots"`
	MountTable    string   `toml:"mount_table"`
	RecordingsDir string   `toml:"recordings_dir"`
	LogsDir       string   `toml:"logs_dir"`
	WatchUdev     bool     `toml:"watch_udev"`
}

// Recorder configures the external capture and converter executables and the
// frame loop retry policy.
type Recorder struct {
	CaptureCommand    string `toml:"capture_command"`
	ConvertCommand    string `toml:"convert_command"`
	FrameExtension    string `toml:"frame_extension"`
	ExportExtension   string `toml:"export_extension"`
	ProbeTimeout      int    `toml:"probe_timeout"`
	MaxFailures       int    `toml:"max_failures"`
	RetryDelayMillis  int    `toml:"retry_delay_ms"`
	StreamingWindowMS int    `toml:"streaming_window_ms"`
}

// Presence configures the background sensor detection poller.
type Presence struct {
	PollInterval int `toml:"poll_interval"`
}

// Log configures retention of the on-drive recordings log.
type Log struct {
	EntryCap int  `toml:"entry_cap"`
	Archive  bool `toml:"archive"`
}

// Logging contains configuration for process log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	FileMaxMB     int    `toml:"file_max_mb"`
	FileBackups   int    `toml:"file_backups"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications configures ntfy alerts for failed sessions and an
// unwritable recordings log.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// LogAlertCooldown throttles repeated log failure alerts, in seconds.
	LogAlertCooldown int `toml:"log_alert_cooldown"`
}

// Config encapsulates all configuration values for tecscanner.
//
// Configuration sections by subsystem:
//   - Paths: local state directory and API bind address
//   - Storage: removable storage mount roots and layout
//   - Recorder: capture/convert binaries and frame loop retry policy
//   - Presence: sensor detection polling
//   - Log: recordings log cap and archival
//   - Logging: log format, level, and rotation
//   - Notifications: ntfy alerts
type Config struct {
	Paths    Paths    `toml:"paths"`
	Storage  Storage  `toml:"storage"`
	Recorder Recorder `toml:"recorder"`
	Presence Presence `toml:"presence"`
	Log      Log      `toml:"log"`
	Logging  Logging  `toml:"logging"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tecscanner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tecscanner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local state directory. Removable storage is
// never created here; it is discovered at runtime.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tecscanner.lock")
}

// SocketPath returns the JSON-RPC control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "tecscanner.sock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "tecscanner.pid")
}

// JournalPath returns the session journal database location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// ProbeTimeout returns the bounded presence probe duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Recorder.ProbeTimeout) * time.Second
}

// RetryDelay returns the wait between failed capture attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Recorder.RetryDelayMillis) * time.Millisecond
}

// StreamingWindow returns how recent the last frame must be for the sensor to
// count as streaming.
func (c *Config) StreamingWindow() time.Duration {
	return time.Duration(c.Recorder.StreamingWindowMS) * time.Millisecond
}

// PollInterval returns the presence detector cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Presence.PollInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
