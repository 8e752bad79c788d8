package recorder

import (
	"time"

	"tecscanner/internal/config"
)

// Options holds controller tunables.
type Options struct {
	CaptureCommand  string
	ConvertCommand  string
	FrameExtension  string
	ExportExtension string
	MaxFailures     int
	RetryDelay      time.Duration
	ProbeTimeout    time.Duration
	PollInterval    time.Duration
	StreamingWindow time.Duration
	LogCap          int
	Archive         bool
}

// OptionsFromConfig maps configuration onto controller options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		CaptureCommand:  cfg.Recorder.CaptureCommand,
		ConvertCommand:  cfg.Recorder.ConvertCommand,
		FrameExtension:  cfg.Recorder.FrameExtension,
		ExportExtension: cfg.Recorder.ExportExtension,
		MaxFailures:     cfg.Recorder.MaxFailures,
		RetryDelay:      cfg.RetryDelay(),
		ProbeTimeout:    cfg.ProbeTimeout(),
		PollInterval:    cfg.PollInterval(),
		StreamingWindow: cfg.StreamingWindow(),
		LogCap:          cfg.Log.EntryCap,
		Archive:         cfg.Log.Archive,
	}
}
