// Package config loads, normalizes, and validates tecscanner configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables used by
// existing scanner deployments (LIVOX_MOUNT_ROOTS, LIVOX_RECORD_CMD,
// LIVOX_CONVERT_CMD, RECORDINGS_LOG_LIMIT, RECORDINGS_LOG_ARCHIVE,
// LIDAR_PROBE_INTERVAL, LOG_LEVEL) plus TECSCANNER_API_TOKEN and NTFY_TOPIC.
// Environment values win over the file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
