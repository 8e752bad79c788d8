// Package notifications pushes recorder alerts to ntfy.
//
// NewService returns a no-op when no topic is configured, so callers never
// branch on whether alerts are enabled. Observer adapts the service to the
// recorder's telemetry hooks: failed sessions, an unwritable recordings log,
// and a sensor that stops answering are published asynchronously so the
// controller never waits on the network.
package notifications
