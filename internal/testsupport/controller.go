package testsupport

import (
	"context"
	"testing"

	"tecscanner/internal/config"
	"tecscanner/internal/journal"
	"tecscanner/internal/procexec"
	"tecscanner/internal/recorder"
	"tecscanner/internal/storage"
)

// MustOpenJournal opens the session journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(context.Background(), cfg.JournalPath())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewController builds a controller whose capture command always resolves
// and whose processes are served by runner. A nil journal is allowed; the
// observers receive controller telemetry.
func NewController(t testing.TB, cfg *config.Config, runner procexec.Runner, store recorder.Journal, observers ...recorder.Observer) *recorder.Controller {
	t.Helper()

	var observer recorder.Observer
	switch len(observers) {
	case 0:
	case 1:
		observer = observers[0]
	default:
		observer = recorder.Observers(observers)
	}
	locator := storage.NewLocator(storage.Options{
		Roots:         cfg.Storage.MountRoots,
		MountTable:    cfg.Storage.MountTable,
		RecordingsDir: cfg.Storage.RecordingsDir,
		LogsDir:       cfg.Storage.LogsDir,
	}, nil)
	c, err := recorder.New(context.Background(), recorder.OptionsFromConfig(cfg), recorder.Deps{
		Locator:  locator,
		Runner:   runner,
		Journal:  store,
		LookPath: func(command string) (string, bool) { return command, true },
		Observer: observer,
	})
	if err != nil {
		t.Fatalf("recorder.New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}
