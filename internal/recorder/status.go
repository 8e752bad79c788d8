package recorder

import "time"

// StatusVersion is bumped whenever Status fields change meaning.
const StatusVersion = 1

// Status is a point-in-time snapshot of the controller. Pointer fields are
// nil when the value is unknown or not applicable.
type Status struct {
	Version           int        `json:"version"`
	Recording         bool       `json:"recording"`
	State             State      `json:"state"`
	CurrentFile       *string    `json:"current_file"`
	CurrentSession    *string    `json:"current_session"`
	Started           *time.Time `json:"started"`
	FramesRecorded    int        `json:"frames_recorded"`
	CurrentSize       *int64     `json:"current_size"`
	StoragePresent    bool       `json:"storage_present"`
	StoragePath       *string    `json:"storage_path"`
	StorageFreeBytes  *uint64    `json:"storage_free_bytes"`
	LidarDetected     bool       `json:"lidar_detected"`
	LidarStreaming    bool       `json:"lidar_streaming"`
	LogError          bool       `json:"log_error"`
	ArchiveError      bool       `json:"archive_error"`
	RecorderAvailable bool       `json:"recorder_available"`
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
