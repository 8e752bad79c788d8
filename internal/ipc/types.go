package ipc

import (
	"tecscanner/internal/api"
	"tecscanner/internal/recorder"
	"tecscanner/internal/sessionlog"
)

// StartRequest asks the controller to begin a session.
type StartRequest struct{}

// StartResponse mirrors the HTTP start payload.
type StartResponse = api.StartResponse

// StopRequest ends the active session.
type StopRequest struct{}

// StopResponse mirrors the HTTP stop payload.
type StopResponse = api.StopResponse

// StatusRequest fetches controller and daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StatusResponse combines the controller snapshot with daemon details.
type StatusResponse struct {
	Recorder     recorder.Status    `json:"recorder"`
	PID          int                `json:"pid"`
	LockPath     string             `json:"lock_path"`
	JournalPath  string             `json:"journal_path"`
	APIAddress   string             `json:"api_address"`
	WatchingUdev bool               `json:"watching_udev"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ListRequest fetches the live recordings log.
type ListRequest struct{}

// ListResponse contains the live recordings log, oldest first.
type ListResponse struct {
	Recordings []sessionlog.Entry `json:"recordings"`
}

// GetLogRequest reads a diagnostic log on the drive. Offset < 0 returns the
// last Lines lines; otherwise complete lines after byte Offset are returned.
type GetLogRequest struct {
	Name   string `json:"name"`
	Lines  int    `json:"lines"`
	Offset int64  `json:"offset"`
}

// GetLogResponse carries log lines and the offset to resume from.
type GetLogResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
	Found  bool     `json:"found"`
}

// HistoryRequest fetches journaled sessions.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse mirrors the HTTP history payload.
type HistoryResponse = api.HistoryResponse
