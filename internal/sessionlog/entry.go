package sessionlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Entry records one finished session.
type Entry struct {
	Folder  string    `json:"folder"`
	Frames  int       `json:"frames"`
	Started time.Time `json:"started"`
	Stopped time.Time `json:"stopped"`
	Error   string    `json:"error,omitempty"`
}

// Timestamps written by older recorders carry no zone and are UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts RFC 3339 timestamps as well as zoneless ones, which
// are read as UTC. A null timestamp decodes to the zero time.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		Started json.RawMessage `json:"started"`
		Stopped json.RawMessage `json:"stopped"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if e.Started, err = parseTimestamp(aux.Started); err != nil {
		return fmt.Errorf("started: %w", err)
	}
	if e.Stopped, err = parseTimestamp(aux.Stopped); err != nil {
		return fmt.Errorf("stopped: %w", err)
	}
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	for _, layout := range zonelessLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Failed reports whether the session ended with an error code.
func (e Entry) Failed() bool { return e.Error != "" }

// Duration returns the wall-clock length of the session.
func (e Entry) Duration() time.Duration {
	if e.Stopped.Before(e.Started) {
		return 0
	}
	return e.Stopped.Sub(e.Started)
}
