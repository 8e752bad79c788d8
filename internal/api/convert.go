package api

import (
	"fmt"

	"tecscanner/internal/deps"
	"tecscanner/internal/journal"
	"tecscanner/internal/recorder"
	"tecscanner/internal/sessionlog"
)

// FromStart converts a controller start result.
func FromStart(started bool, code recorder.ErrorCode) StartResponse {
	if started {
		return StartResponse{Started: true}
	}
	return StartResponse{
		Error:   string(code),
		Message: fmt.Sprintf("recording not started: %s", code.Label()),
	}
}

// FromEntries guarantees a non-nil slice so JSON renders [] rather than null.
func FromEntries(entries []sessionlog.Entry) RecordingsResponse {
	if entries == nil {
		entries = []sessionlog.Entry{}
	}
	return RecordingsResponse{Recordings: entries}
}

// FromHistory flattens journal records.
func FromHistory(records []journal.Record) HistoryResponse {
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryEntry{
			ID:         rec.ID,
			Mount:      rec.Mount,
			Folder:     rec.Entry.Folder,
			Frames:     rec.Entry.Frames,
			Started:    rec.Entry.Started,
			Stopped:    rec.Entry.Stopped,
			Error:      rec.Entry.Error,
			RecordedAt: rec.RecordedAt,
		})
	}
	return HistoryResponse{Sessions: out}
}

// FromDependencies converts dependency check results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, DependencyStatus{
			Name:        st.Name,
			Command:     st.Command,
			Description: st.Description,
			Optional:    st.Optional,
			Available:   st.Available,
			Path:        st.Path,
			Detail:      st.Detail,
		})
	}
	return out
}
