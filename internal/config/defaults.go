package config

const (
	defaultStateDir          = "~/.local/share/tecscanner"
	defaultAPIBind           = "127.0.0.1:8080"
	defaultMountTable        = "/proc/self/mountinfo"
	defaultRecordingsDir     = "recordings"
	defaultLogsDir           = "logs"
	defaultCaptureCommand    = "save_laz"
	defaultFrameExtension    = "laz"
	defaultExportExtension   = "csv"
	defaultProbeTimeout      = 5
	defaultMaxFailures       = 3
	defaultRetryDelayMillis  = 1000
	defaultStreamingWindowMS = 2000
	defaultPollInterval      = 5
	defaultEntryCap          = 100
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogFileMaxMB      = 5
	defaultLogFileBackups    = 3
	defaultLogRetentionDays  = 30
	defaultNtfyTimeout       = 10
	defaultLogAlertCooldown  = 600
)

func defaultMountRoots() []string {
	return []string{"/media", "/run/media"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		Storage: Storage{
			MountRoots:    defaultMountRoots(),
			MountTable:    defaultMountTable,
			RecordingsDir: defaultRecordingsDir,
			LogsDir:       defaultLogsDir,
			WatchUdev:     true,
		},
		Recorder: Recorder{
			CaptureCommand:    defaultCaptureCommand,
			FrameExtension:    defaultFrameExtension,
			ExportExtension:   defaultExportExtension,
			ProbeTimeout:      defaultProbeTimeout,
			MaxFailures:       defaultMaxFailures,
			RetryDelayMillis:  defaultRetryDelayMillis,
			StreamingWindowMS: defaultStreamingWindowMS,
		},
		Presence: Presence{
			PollInterval: defaultPollInterval,
		},
		Log: Log{
			EntryCap: defaultEntryCap,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			FileMaxMB:     defaultLogFileMaxMB,
			FileBackups:   defaultLogFileBackups,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNtfyTimeout,
			LogAlertCooldown: defaultLogAlertCooldown,
		},
	}
}
