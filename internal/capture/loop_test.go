package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tecscanner/internal/procexec"
)

type call struct {
	name string
	args []string
}

// fakeRunner writes a small file for capture calls and consults fail to
// decide the exit status of each capture attempt.
type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	fail  func(attempt int) bool
	onRun func(attempt int)
}

func (f *fakeRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (procexec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	attempt := f.captureCountLocked()
	f.mu.Unlock()

	if name == "save_laz" {
		if f.onRun != nil {
			f.onRun(attempt)
		}
		if f.fail != nil && f.fail(attempt) {
			return procexec.Result{ExitCode: 1, Output: []byte("device busy")}, nil
		}
		if err := os.WriteFile(args[0], []byte("points"), 0o644); err != nil {
			return procexec.Result{}, err
		}
		return procexec.Result{}, nil
	}
	if name == "laz2csv" {
		if err := os.WriteFile(args[1], []byte("x,y,z"), 0o644); err != nil {
			return procexec.Result{}, err
		}
	}
	return procexec.Result{}, nil
}

func (f *fakeRunner) captureCountLocked() int {
	n := 0
	for _, c := range f.calls {
		if c.name == "save_laz" {
			n++
		}
	}
	return n
}

func (f *fakeRunner) callsNamed(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type countingObserver struct {
	mu       sync.Mutex
	frames   int
	failures int
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

func TestFrameName(t *testing.T) {
	if got := FrameName(7, "laz"); got != "frame_000007.laz" {
		t.Fatalf("unexpected frame name %q", got)
	}
}

func TestRunAlwaysFailingTerminatesAfterThresholdPlusOne(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{fail: func(int) bool { return true }}
	obs := &countingObserver{}
	loop := New(Options{Command: "save_laz", MaxFailures: 3}, runner, obs, nil)

	outcome := loop.Run(context.Background(), dir, make(chan struct{}), nil)
	if !errors.Is(outcome.Err, ErrTooManyFailures) || !outcome.Failed() {
		t.Fatalf("expected ErrTooManyFailures, got %v", outcome.Err)
	}
	if got := len(runner.callsNamed("save_laz")); got != 4 {
		t.Fatalf("expected 4 attempts, got %d", got)
	}
	for _, c := range runner.callsNamed("save_laz") {
		if filepath.Base(c.args[0]) != "frame_000000.laz" {
			t.Fatalf("retries must target the same frame, got %s", c.args[0])
		}
	}
	if outcome.Frames != 0 || obs.failures != 4 {
		t.Fatalf("unexpected outcome %+v observer failures %d", outcome, obs.failures)
	}
}

func TestRunRecoversAfterTransientFailures(t *testing.T) {
	dir := t.TempDir()
	stop := make(chan struct{})
	var once sync.Once
	runner := &fakeRunner{
		// Attempts 2 and 3 fail, attempt 4 retries frame 1 successfully.
		fail: func(attempt int) bool { return attempt == 2 || attempt == 3 },
		onRun: func(attempt int) {
			if attempt == 5 {
				once.Do(func() { close(stop) })
			}
		},
	}
	loop := New(Options{Command: "save_laz", ConvertCommand: "laz2csv", MaxFailures: 3}, runner, nil, nil)

	var frames []Frame
	outcome := loop.Run(context.Background(), dir, stop, func(f Frame) { frames = append(frames, f) })
	if outcome.Err != nil {
		t.Fatalf("unexpected error %v", outcome.Err)
	}
	if outcome.Frames != 3 || len(frames) != 3 {
		t.Fatalf("expected 3 frames, got outcome %+v frames %d", outcome, len(frames))
	}
	for i, f := range frames {
		if f.Index != i || filepath.Base(f.Path) != FrameName(i, "laz") {
			t.Fatalf("frame %d out of sequence: %+v", i, f)
		}
		if f.Size != int64(len("points")) {
			t.Fatalf("unexpected frame size %d", f.Size)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "frame_000002.csv")); err != nil {
		t.Fatalf("expected export for last frame: %v", err)
	}
	if got := len(runner.callsNamed("laz2csv")); got != 3 {
		t.Fatalf("expected 3 conversions, got %d", got)
	}
}

func TestRunSkipsExportWhenCompanionExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "frame_000000.csv"), []byte("pre"), 0o644); err != nil {
		t.Fatal(err)
	}
	stop := make(chan struct{})
	runner := &fakeRunner{onRun: func(attempt int) {
		if attempt == 1 {
			close(stop)
		}
	}}
	loop := New(Options{Command: "save_laz", ConvertCommand: "laz2csv"}, runner, nil, nil)
	outcome := loop.Run(context.Background(), dir, stop, nil)
	if outcome.Frames != 1 {
		t.Fatalf("expected 1 frame, got %+v", outcome)
	}
	if got := len(runner.callsNamed("laz2csv")); got != 0 {
		t.Fatalf("converter should be skipped, got %d calls", got)
	}
}

func TestRunStopsDuringRetryWait(t *testing.T) {
	stop := make(chan struct{})
	runner := &fakeRunner{
		fail: func(int) bool { return true },
		onRun: func(attempt int) {
			if attempt == 1 {
				close(stop)
			}
		},
	}
	loop := New(Options{Command: "save_laz", MaxFailures: 3, RetryDelay: time.Hour}, runner, nil, nil)

	done := make(chan Outcome, 1)
	go func() { done <- loop.Run(context.Background(), t.TempDir(), stop, nil) }()
	select {
	case outcome := <-done:
		if outcome.Err != nil {
			t.Fatalf("stop during retry should not be a failure, got %v", outcome.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not observe stop during retry wait")
	}
}

func TestRunReturnsImmediatelyWhenAlreadyStopped(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	runner := &fakeRunner{}
	outcome := New(Options{Command: "save_laz"}, runner, nil, nil).Run(context.Background(), t.TempDir(), stop, nil)
	if outcome.Frames != 0 || len(runner.callsNamed("save_laz")) != 0 {
		t.Fatalf("expected no attempts, got %+v", outcome)
	}
}
