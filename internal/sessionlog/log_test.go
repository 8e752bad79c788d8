package sessionlog_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tecscanner/internal/sessionlog"
	"tecscanner/internal/storage"
)

func entry(n int) sessionlog.Entry {
	start := time.Date(2024, 5, 1, 12, 0, n, 0, time.UTC)
	return sessionlog.Entry{
		Folder:  "session_" + start.Format("20060102_150405"),
		Frames:  n,
		Started: start,
		Stopped: start.Add(time.Second),
	}
}

func readFolders(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var items []sessionlog.Entry
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	folders := make([]string, 0, len(items))
	for _, item := range items {
		folders = append(folders, item.Folder)
	}
	return folders
}

func TestAppendCapsAndArchivesOverflow(t *testing.T) {
	dir := t.TempDir()
	log := sessionlog.New(sessionlog.Options{Cap: 3, Archive: true}, nil)

	for i := 1; i <= 4; i++ {
		res := log.Append(dir, entry(i))
		if res.LogErr != nil || res.ArchiveErr != nil {
			t.Fatalf("append %d failed: %+v", i, res)
		}
		if i == 4 && res.Archived != 1 {
			t.Fatalf("expected one archived entry, got %+v", res)
		}
	}

	live := readFolders(t, filepath.Join(dir, storage.LogFileName))
	if len(live) != 3 || live[0] != entry(2).Folder || live[2] != entry(4).Folder {
		t.Fatalf("unexpected live log %v", live)
	}
	archived := readFolders(t, filepath.Join(dir, storage.ArchiveFileName))
	if len(archived) != 1 || archived[0] != entry(1).Folder {
		t.Fatalf("unexpected archive %v", archived)
	}
	if got := log.ListArchive(dir); len(got) != 1 {
		t.Fatalf("ListArchive returned %d entries", len(got))
	}
}

func TestAppendWithoutArchiveDiscardsOverflow(t *testing.T) {
	dir := t.TempDir()
	log := sessionlog.New(sessionlog.Options{Cap: 3}, nil)

	var last sessionlog.AppendResult
	for i := 1; i <= 4; i++ {
		last = log.Append(dir, entry(i))
	}
	if last.Dropped != 1 || last.Archived != 0 {
		t.Fatalf("unexpected result %+v", last)
	}
	if _, err := os.Stat(filepath.Join(dir, storage.ArchiveFileName)); !os.IsNotExist(err) {
		t.Fatalf("archive should not exist, stat err=%v", err)
	}
	entries, err := log.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 || entries[0].Folder != entry(2).Folder {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestAppendUncappedWhenCapZero(t *testing.T) {
	dir := t.TempDir()
	log := sessionlog.New(sessionlog.Options{Cap: 0}, nil)
	for i := 1; i <= 5; i++ {
		log.Append(dir, entry(i))
	}
	entries, _ := log.List(dir)
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
}

func TestCorruptLogResetsOnList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, storage.LogFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := sessionlog.New(sessionlog.Options{Cap: 3}, nil)
	entries, err := log.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty list, got %+v", entries)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected log reset to [], got %q", data)
	}
}

func TestCorruptLogResetsOnAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, storage.LogFileName)
	if err := os.WriteFile(path, []byte(`{"folder":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	log := sessionlog.New(sessionlog.Options{Cap: 3}, nil)
	res := log.Append(dir, entry(1))
	if !res.Recovered || res.LogErr != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if folders := readFolders(t, path); len(folders) != 1 || folders[0] != entry(1).Folder {
		t.Fatalf("unexpected log %v", folders)
	}
}

func TestCorruptArchiveTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, storage.ArchiveFileName)
	if err := os.WriteFile(archive, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	log := sessionlog.New(sessionlog.Options{Cap: 1, Archive: true}, nil)
	log.Append(dir, entry(1))
	res := log.Append(dir, entry(2))
	if res.ArchiveErr != nil || res.Archived != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if folders := readFolders(t, archive); len(folders) != 1 || folders[0] != entry(1).Folder {
		t.Fatalf("unexpected archive %v", folders)
	}
}

func TestLegacyEntriesPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, storage.LogFileName)
	legacy := `[{"folder":"session_20230101_000000","frames":3,"started":"2023-01-01T00:00:00","stopped":"2023-01-01T00:01:00"}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	log := sessionlog.New(sessionlog.Options{Cap: 5}, nil)
	log.Append(dir, entry(1))

	folders := rawFolders(t, path)
	if len(folders) != 2 || folders[0] != "session_20230101_000000" {
		t.Fatalf("legacy entry lost: %v", folders)
	}
}

func rawFolders(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, item := range items {
		out = append(out, item["folder"].(string))
	}
	return out
}

func TestAppendFailuresReported(t *testing.T) {
	log := sessionlog.New(sessionlog.Options{Cap: 3}, nil)

	if res := log.Append("", entry(1)); !errors.Is(res.LogErr, sessionlog.ErrNoStorage) {
		t.Fatalf("expected ErrNoStorage, got %+v", res)
	}

	missing := filepath.Join(t.TempDir(), "unplugged")
	if res := log.Append(missing, entry(1)); res.LogErr == nil {
		t.Fatal("expected write error for missing directory")
	}

	entries, err := log.List("")
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty list without storage, got %v %v", entries, err)
	}
}

func TestEntryErrorOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(entry(1))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["error"]; ok {
		t.Fatalf("error key should be omitted: %s", data)
	}
	failed := entry(1)
	failed.Error = "save_failed"
	if !failed.Failed() || failed.Duration() != time.Second {
		t.Fatalf("unexpected helpers for %+v", failed)
	}
}

func TestListDecodesZonelessTimestamps(t *testing.T) {
	dir := t.TempDir()
	legacy := `[
{"folder":"session_20230101_000000","frames":3,"started":"2023-01-01T00:00:00.123456","stopped":"2023-01-01T00:01:00.5"},
{"folder":"session_20230102_080000","frames":0,"started":"2023-01-02T08:00:00","stopped":null,"error":"save_failed"},
{"folder":"session_20230103_090000","frames":1,"started":"2023-01-03T09:00:00+02:00","stopped":"2023-01-03T09:00:10+02:00"}
]`
	if err := os.WriteFile(filepath.Join(dir, storage.LogFileName), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := sessionlog.New(sessionlog.Options{Cap: 5}, nil).List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	wantStart := time.Date(2023, 1, 1, 0, 0, 0, 123456000, time.UTC)
	if !entries[0].Started.Equal(wantStart) || entries[0].Started.Location() != time.UTC {
		t.Fatalf("unexpected started %v", entries[0].Started)
	}
	if got := entries[0].Duration(); got != 60*time.Second+376544*time.Microsecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if !entries[1].Stopped.IsZero() || !entries[1].Failed() {
		t.Fatalf("expected zero stopped on failed entry, got %+v", entries[1])
	}
	if want := time.Date(2023, 1, 3, 7, 0, 0, 0, time.UTC); !entries[2].Started.Equal(want) {
		t.Fatalf("unexpected zoned started %v", entries[2].Started)
	}
}

func TestListSkipsUnparseableTimestamp(t *testing.T) {
	dir := t.TempDir()
	raw := `[{"folder":"bad","frames":1,"started":"yesterday","stopped":null},` +
		`{"folder":"good","frames":1,"started":"2023-01-01T00:00:00","stopped":"2023-01-01T00:00:01"}]`
	if err := os.WriteFile(filepath.Join(dir, storage.LogFileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := sessionlog.New(sessionlog.Options{}, nil).List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Folder != "good" {
		t.Fatalf("expected only the readable entry, got %+v", entries)
	}
}
