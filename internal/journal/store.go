package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tecscanner/internal/sessionlog"
)

// DefaultLimit bounds Recent when the caller passes a non-positive limit.
const DefaultLimit = 50

// Record is one journaled session.
type Record struct {
	ID         int64            `json:"id"`
	Mount      string           `json:"mount"`
	Entry      sessionlog.Entry `json:"entry"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// Store manages session history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps pragmas and writes serialized.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a finished session recorded on mount.
func (s *Store) Record(ctx context.Context, mount string, entry sessionlog.Entry) error {
	if s == nil || s.db == nil {
		return errors.New("journal not open")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
            mount, folder, frames, started_at, stopped_at, error_code, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mount,
		entry.Folder,
		entry.Frames,
		formatTime(entry.Started),
		formatTime(entry.Stopped),
		nullableString(entry.Error),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("journal not open")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, mount, folder, frames, started_at, stopped_at, error_code, recorded_at
         FROM sessions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

// Count returns the number of journaled sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		record                       Record
		started, stopped, recordedAt string
		errorCode                    sql.NullString
	)
	if err := rows.Scan(
		&record.ID,
		&record.Mount,
		&record.Entry.Folder,
		&record.Entry.Frames,
		&started,
		&stopped,
		&errorCode,
		&recordedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan session: %w", err)
	}
	record.Entry.Started = parseTime(started)
	record.Entry.Stopped = parseTime(stopped)
	record.Entry.Error = errorCode.String
	record.RecordedAt = parseTime(recordedAt)
	return record, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
