// Package logging assembles structured slog loggers and formatting helpers used
// across tecscanner services.
//
// It owns the configurable console/JSON handlers and a storage sink that
// mirrors log lines onto whichever removable drive is currently mounted,
// rotating the file with lumberjack. WarnWithContext and ErrorWithContext
// enforce the event_type/error_hint/impact shape for degraded conditions.
package logging
