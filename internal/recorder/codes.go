package recorder

import (
	"errors"
	"strings"
)

// ErrorCode identifies why an operation did not succeed. The values are
// stable API strings.
type ErrorCode string

const (
	CodeNone          ErrorCode = ""
	CodeNoRecorder    ErrorCode = "no_recorder"
	CodeAlreadyActive ErrorCode = "already_active"
	CodeNoStorage     ErrorCode = "no_storage"
	CodeNoLidar       ErrorCode = "no_lidar"
	CodeSpawnFailed   ErrorCode = "spawn_failed"
	CodeSaveFailed    ErrorCode = "save_failed"
)

// Label renders a code as lower-case words, for example "no lidar".
func (c ErrorCode) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// State is the controller's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// ErrLogNotFound is returned by GetLog for unknown or invalid log names and
// when no storage is mounted.
var ErrLogNotFound = errors.New("log not found")
