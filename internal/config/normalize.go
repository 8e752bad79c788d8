package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	if err := c.normalizeRecorder(); err != nil {
		return err
	}
	if err := c.normalizePresence(); err != nil {
		return err
	}
	if err := c.normalizeLog(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TECSCANNER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeStorage() {
	if value, ok := os.LookupEnv("LIVOX_MOUNT_ROOTS"); ok && strings.TrimSpace(value) != "" {
		c.Storage.MountRoots = filepath.SplitList(value)
	}
	roots := make([]string, 0, len(c.Storage.MountRoots))
	seen := make(map[string]struct{}, len(c.Storage.MountRoots))
	for _, root := range c.Storage.MountRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		roots = append(roots, trimmed)
	}
	if len(roots) == 0 {
		roots = defaultMountRoots()
	}
	c.Storage.MountRoots = roots

	c.Storage.MountTable = strings.TrimSpace(c.Storage.MountTable)
	if c.Storage.MountTable == "" {
		c.Storage.MountTable = defaultMountTable
	}
	c.Storage.RecordingsDir = strings.Trim(strings.TrimSpace(c.Storage.RecordingsDir), "/")
	if c.Storage.RecordingsDir == "" {
		c.Storage.RecordingsDir = defaultRecordingsDir
	}
	c.Storage.LogsDir = strings.Trim(strings.TrimSpace(c.Storage.LogsDir), "/")
	if c.Storage.LogsDir == "" {
		c.Storage.LogsDir = defaultLogsDir
	}
}

func (c *Config) normalizeRecorder() error {
	if value, ok := os.LookupEnv("LIVOX_RECORD_CMD"); ok && strings.TrimSpace(value) != "" {
		c.Recorder.CaptureCommand = value
	}
	if value, ok := os.LookupEnv("LIVOX_CONVERT_CMD"); ok {
		c.Recorder.ConvertCommand = value
	}
	c.Recorder.CaptureCommand = strings.TrimSpace(c.Recorder.CaptureCommand)
	c.Recorder.ConvertCommand = strings.TrimSpace(c.Recorder.ConvertCommand)

	c.Recorder.FrameExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Recorder.FrameExtension)), ".")
	if c.Recorder.FrameExtension == "" {
		c.Recorder.FrameExtension = defaultFrameExtension
	}
	c.Recorder.ExportExtension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Recorder.ExportExtension)), ".")
	if c.Recorder.ExportExtension == "" {
		c.Recorder.ExportExtension = defaultExportExtension
	}
	if c.Recorder.ProbeTimeout == 0 {
		c.Recorder.ProbeTimeout = defaultProbeTimeout
	}
	if c.Recorder.StreamingWindowMS == 0 {
		c.Recorder.StreamingWindowMS = defaultStreamingWindowMS
	}
	return nil
}

func (c *Config) normalizePresence() error {
	if value, ok := os.LookupEnv("LIDAR_PROBE_INTERVAL"); ok && strings.TrimSpace(value) != "" {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("LIDAR_PROBE_INTERVAL: %w", err)
		}
		// Sub-second intervals round up so the poller never spins.
		c.Presence.PollInterval = int(seconds)
		if float64(c.Presence.PollInterval) < seconds {
			c.Presence.PollInterval++
		}
	}
	if c.Presence.PollInterval == 0 {
		c.Presence.PollInterval = defaultPollInterval
	}
	return nil
}

func (c *Config) normalizeLog() error {
	if value, ok := os.LookupEnv("RECORDINGS_LOG_LIMIT"); ok && strings.TrimSpace(value) != "" {
		limit, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("RECORDINGS_LOG_LIMIT: %w", err)
		}
		c.Log.EntryCap = limit
	}
	if value, ok := os.LookupEnv("RECORDINGS_LOG_ARCHIVE"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes":
			c.Log.Archive = true
		default:
			c.Log.Archive = false
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.FileMaxMB <= 0 {
		c.Logging.FileMaxMB = defaultLogFileMaxMB
	}
	if c.Logging.FileBackups < 0 {
		c.Logging.FileBackups = 0
	}
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}
