// Package ipc exposes the recorder over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Method
// names are Recorder.Start, Recorder.Stop, Recorder.Status, Recorder.List,
// Recorder.GetLog and Recorder.History; reuse these types when adding
// endpoints to keep the protocol stable for existing commands.
package ipc
