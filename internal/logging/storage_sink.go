package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// StorageLogName is the file name used for the on-drive process log.
const StorageLogName = "tecscanner.log"

// SinkOptions controls rotation of the on-drive process log.
type SinkOptions struct {
	MaxSizeMB     int
	MaxBackups    int
	RetentionDays int
}

// StorageSink is an io.Writer that forwards to a rotating log file on the
// attached drive. Writes are dropped while no drive is attached.
type StorageSink struct {
	mu     sync.Mutex
	opts   SinkOptions
	dir    string
	writer *lumberjack.Logger
}

// NewStorageSink creates a detached sink.
func NewStorageSink(opts SinkOptions) *StorageSink {
	return &StorageSink{opts: opts}
}

// Attach points the sink at dir, creating it when necessary. Attaching the
// directory that is already active is a no-op.
func (s *StorageSink) Attach(dir string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil && s.dir == dir {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %q: %w", dir, err)
	}
	s.closeLocked()
	s.dir = dir
	s.writer = &lumberjack.Logger{
		Filename:   filepath.Join(dir, StorageLogName),
		MaxSize:    s.opts.MaxSizeMB,
		MaxBackups: s.opts.MaxBackups,
		MaxAge:     s.opts.RetentionDays,
		Compress:   false,
	}
	return nil
}

// Detach closes the active file, if any.
func (s *StorageSink) Detach() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Dir reports the attached directory, or "" when detached.
func (s *StorageSink) Dir() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return ""
	}
	return s.dir
}

func (s *StorageSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return len(p), nil
	}
	if _, err := s.writer.Write(p); err != nil {
		// The drive may have been pulled; stop writing until re-attached.
		s.closeLocked()
	}
	return len(p), nil
}

// Close releases the underlying file.
func (s *StorageSink) Close() error {
	s.Detach()
	return nil
}

func (s *StorageSink) closeLocked() {
	if s.writer != nil {
		_ = s.writer.Close()
	}
	s.writer = nil
	s.dir = ""
}
