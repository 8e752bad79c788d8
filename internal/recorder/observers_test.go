package recorder

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tecscanner/internal/storage"
)

type countingObserver struct {
	mu       sync.Mutex
	frames   int
	failures int
	results  []string
	logFails int
	presence []bool
}

func (o *countingObserver) FrameCaptured(time.Duration) {
	o.mu.Lock()
	o.frames++
	o.mu.Unlock()
}

func (o *countingObserver) CaptureFailed() {
	o.mu.Lock()
	o.failures++
	o.mu.Unlock()
}

func (o *countingObserver) SessionFinished(result string) {
	o.mu.Lock()
	o.results = append(o.results, result)
	o.mu.Unlock()
}

func (o *countingObserver) LogWriteFailed() {
	o.mu.Lock()
	o.logFails++
	o.mu.Unlock()
}

func (o *countingObserver) LidarPresence(detected bool) {
	o.mu.Lock()
	o.presence = append(o.presence, detected)
	o.mu.Unlock()
}

func (o *countingObserver) finished() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.results...)
}

func TestObserversFanOutSkipsNil(t *testing.T) {
	first := &countingObserver{}
	second := &countingObserver{}
	fan := Observers{first, nil, second}

	fan.FrameCaptured(time.Second)
	fan.CaptureFailed()
	fan.SessionFinished("completed")
	fan.LogWriteFailed()
	fan.LidarPresence(true)

	for i, obs := range []*countingObserver{first, second} {
		if obs.frames != 1 || obs.failures != 1 || obs.logFails != 1 {
			t.Fatalf("observer %d: unexpected counts %+v", i, obs)
		}
		if len(obs.results) != 1 || obs.results[0] != "completed" {
			t.Fatalf("observer %d: unexpected results %v", i, obs.results)
		}
		if len(obs.presence) != 1 || !obs.presence[0] {
			t.Fatalf("observer %d: unexpected presence %v", i, obs.presence)
		}
	}
}

func TestControllerReportsSessionOutcome(t *testing.T) {
	h := newHarness(t)
	h.runner.failCapture = true
	obs := &countingObserver{}
	locator := storage.NewLocator(storage.Options{Roots: []string{filepath.Dir(h.mount)}, MountTable: h.table}, nil)
	c, err := New(context.Background(), h.opts, Deps{
		Locator:  locator,
		Runner:   h.runner,
		Observer: Observers{obs},
		LookPath: func(command string) (string, bool) { return command, true },
		Clock:    h.clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)

	if ok, code := c.Start(context.Background()); !ok {
		t.Fatalf("Start failed: %q", code)
	}
	waitFor(t, "session to terminate", func() bool { return len(obs.finished()) == 1 })
	if got := obs.finished()[0]; got != string(CodeSaveFailed) {
		t.Fatalf("expected %q outcome, got %q", CodeSaveFailed, got)
	}
}
