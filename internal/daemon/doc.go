// Package daemon coordinates the long-running tecscanner process and its
// system integration points.
//
// It wires the recording controller, session journal, metrics registry and
// udev storage watcher into a single lifecycle with flock-based locking to
// prevent multiple instances, and serves the optional HTTP control API.
//
// Keep orchestration here: recording semantics live in internal/recorder
// while the daemon focuses on startup, shutdown, and transport adapters.
package daemon
