package sessionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"tecscanner/internal/fileutil"
	"tecscanner/internal/logging"
	"tecscanner/internal/storage"
)

// ErrNoStorage indicates that no recordings directory was supplied.
var ErrNoStorage = errors.New("no removable storage mounted")

// Options configures retention.
type Options struct {
	// Cap is the maximum number of entries kept in the live log. Zero or
	// negative disables truncation.
	Cap int
	// Archive moves overflow into the archive file instead of discarding it.
	Archive bool
}

// AppendResult describes what a single Append did.
type AppendResult struct {
	Archived   int
	Dropped    int
	Recovered  bool
	LogErr     error
	ArchiveErr error
}

// Log reads and writes the recordings log inside a recordings directory.
// It holds no per-drive state, so the same Log serves whichever drive is
// currently mounted.
type Log struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Log.
func New(opts Options, logger *slog.Logger) *Log {
	return &Log{opts: opts, logger: logging.NewComponentLogger(logger, "session-log")}
}

// Append adds entry to the log in dir, trimming it to the configured cap.
// Failures are reported through the result and never panic or block
// recording.
func (l *Log) Append(dir string, entry Entry) AppendResult {
	var result AppendResult
	if strings.TrimSpace(dir) == "" {
		result.LogErr = ErrNoStorage
		return result
	}
	logPath := filepath.Join(dir, storage.LogFileName)

	unlock := l.lock(logPath)
	defer unlock()

	items, recovered, err := l.readArray(logPath)
	if err != nil {
		result.LogErr = err
		return result
	}
	result.Recovered = recovered

	raw, err := json.Marshal(entry)
	if err != nil {
		result.LogErr = fmt.Errorf("encode entry: %w", err)
		return result
	}
	items = append(items, raw)

	var overflow []json.RawMessage
	if l.opts.Cap > 0 && len(items) > l.opts.Cap {
		cut := len(items) - l.opts.Cap
		overflow = items[:cut]
		items = items[cut:]
	}

	if len(overflow) > 0 {
		if l.opts.Archive {
			if err := l.archive(filepath.Join(dir, storage.ArchiveFileName), overflow); err != nil {
				result.ArchiveErr = err
				logging.WarnWithContext(l.logger, "failed to archive recordings log", "archive_write_failed",
					logging.Error(err),
					logging.Int("entries", len(overflow)),
					logging.String(logging.FieldErrorHint, "check free space and write access on the drive"),
					logging.String(logging.FieldImpact, "overflowed log entries were discarded"),
				)
			} else {
				result.Archived = len(overflow)
			}
		} else {
			result.Dropped = len(overflow)
		}
	}

	if err := writeArray(logPath, items); err != nil {
		result.LogErr = err
		logging.WarnWithContext(l.logger, "failed to write recordings log", "log_write_failed",
			logging.Error(err),
			logging.String("path", logPath),
			logging.String(logging.FieldErrorHint, "check free space and write access on the drive"),
			logging.String(logging.FieldImpact, "session missing from the recordings log"),
		)
	}
	return result
}

// List returns the decoded entries of the log in dir, oldest first. A missing
// directory or file yields an empty list. A corrupt file is reset to an empty
// array; the returned error reports a failure to persist that reset.
func (l *Log) List(dir string) ([]Entry, error) {
	if strings.TrimSpace(dir) == "" {
		return []Entry{}, nil
	}
	logPath := filepath.Join(dir, storage.LogFileName)

	unlock := l.lock(logPath)
	defer unlock()

	items, _, err := l.readArray(logPath)
	return l.decode(items), err
}

// ListArchive returns the decoded archive entries in dir. A corrupt archive
// is reported as empty and left in place.
func (l *Log) ListArchive(dir string) []Entry {
	if strings.TrimSpace(dir) == "" {
		return []Entry{}
	}
	items, err := readRaw(filepath.Join(dir, storage.ArchiveFileName))
	if err != nil {
		return []Entry{}
	}
	return l.decode(items)
}

func (l *Log) decode(items []json.RawMessage) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, raw := range items {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			l.logger.Debug("skipping unreadable log entry", logging.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// readArray loads the live log. Corruption is repaired by writing an empty
// array; the second return value reports that a reset happened.
func (l *Log) readArray(path string) ([]json.RawMessage, bool, error) {
	items, err := readRaw(path)
	if err == nil {
		return items, false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	var corrupt *corruptError
	if !errors.As(err, &corrupt) {
		return nil, false, err
	}

	logging.WarnWithContext(l.logger, "corrupted recordings log detected; resetting", "log_corrupt_reset",
		logging.Error(err),
		logging.String("path", path),
		logging.String(logging.FieldErrorHint, "the drive may have been removed during a write"),
		logging.String(logging.FieldImpact, "previous log entries were discarded"),
	)
	if werr := writeArray(path, nil); werr != nil {
		return nil, true, werr
	}
	return nil, true, nil
}

func (l *Log) archive(path string, overflow []json.RawMessage) error {
	existing, err := readRaw(path)
	if err != nil {
		var corrupt *corruptError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &corrupt) {
			return err
		}
		existing = nil
	}
	existing = append(existing, overflow...)
	return writeArray(path, existing)
}

// lock takes the advisory lock guarding read-modify-write of path. Lock
// failures, for example on filesystems without flock support, are logged and
// the operation proceeds unlocked.
func (l *Log) lock(path string) func() {
	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		l.logger.Debug("recordings log lock unavailable", logging.Error(err), logging.String("path", path))
		return func() {}
	}
	return func() { _ = fileLock.Unlock() }
}

type corruptError struct {
	path string
	err  error
}

func (e *corruptError) Error() string {
	return fmt.Sprintf("decode %s: %v", filepath.Base(e.path), e.err)
}

func (e *corruptError) Unwrap() error { return e.err }

func readRaw(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &corruptError{path: path, err: err}
	}
	return items, nil
}

func writeArray(path string, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	return fileutil.WriteJSONAtomic(path, items)
}
