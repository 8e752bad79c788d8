// Package api defines wire-format types shared by the HTTP API and the IPC
// socket, plus the converters from controller and journal models.
//
// # Key Types
//
// StartResponse/StopResponse: outcome of control requests, with the stable
// error code string when a start is refused.
//
// RecordingsResponse: the live recordings log of the mounted drive.
//
// HistoryEntry: one journaled session, flattened for tables and JSON.
//
// # Design Notes
//
// JSON keys are snake_case to match the recordings log on the drive.
// Timestamps are RFC 3339 UTC. Status reuses recorder.Status directly so
// both transports render identical documents.
package api
