package api

import (
	"net/http"
	"time"

	"tecscanner/internal/recorder"
	"tecscanner/internal/sessionlog"
)

// StartResponse reports whether a recording session was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// StopResponse reports whether an active session was stopped.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Error   string `json:"error,omitempty"`
}

// RecordingsResponse wraps the live recordings log.
type RecordingsResponse struct {
	Recordings []sessionlog.Entry `json:"recordings"`
}

// HistoryEntry is a journaled session.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	Mount      string    `json:"mount"`
	Folder     string    `json:"folder"`
	Frames     int       `json:"frames"`
	Started    time.Time `json:"started"`
	Stopped    time.Time `json:"stopped"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryResponse wraps journal entries, newest first.
type HistoryResponse struct {
	Sessions []HistoryEntry `json:"sessions"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// ErrorResponse is the JSON body of failed HTTP requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartHTTPStatus maps a start refusal to its HTTP status code.
func StartHTTPStatus(code recorder.ErrorCode) int {
	switch code {
	case recorder.CodeNone:
		return http.StatusOK
	case recorder.CodeAlreadyActive:
		return http.StatusConflict
	case recorder.CodeNoRecorder, recorder.CodeNoStorage, recorder.CodeNoLidar:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
