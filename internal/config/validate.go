package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable for daemon operation.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRecorder(); err != nil {
		return err
	}
	if c.Presence.PollInterval <= 0 {
		return errors.New("presence.poll_interval must be positive")
	}
	if c.Log.EntryCap < 0 {
		return errors.New("log.entry_cap must be >= 0 (0 disables the cap)")
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if len(c.Storage.MountRoots) == 0 {
		return errors.New("storage.mount_roots must list at least one root")
	}
	for _, root := range c.Storage.MountRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("storage.mount_roots: %q must be an absolute path", root)
		}
	}
	for key, value := range map[string]string{
		"storage.recordings_dir": c.Storage.RecordingsDir,
		"storage.logs_dir":       c.Storage.LogsDir,
	} {
		if strings.Contains(value, "..") {
			return fmt.Errorf("%s must stay inside the mount point", key)
		}
	}
	return nil
}

func (c *Config) validateRecorder() error {
	if err := ensurePositiveMap(map[string]int{
		"recorder.probe_timeout":       c.Recorder.ProbeTimeout,
		"recorder.streaming_window_ms": c.Recorder.StreamingWindowMS,
	}); err != nil {
		return err
	}
	if c.Recorder.MaxFailures < 0 {
		return errors.New("recorder.max_failures must be >= 0")
	}
	if c.Recorder.RetryDelayMillis < 0 {
		return errors.New("recorder.retry_delay_ms must be >= 0")
	}
	if c.Recorder.FrameExtension == c.Recorder.ExportExtension {
		return errors.New("recorder.frame_extension and recorder.export_extension must differ")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.LogAlertCooldown < 0 {
		return errors.New("notifications.log_alert_cooldown must be >= 0")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: %q must be an http(s) URL", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
