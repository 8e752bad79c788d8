package testsupport

import (
	"context"
	"os"
	"sync"
	"time"

	"tecscanner/internal/presence"
	"tecscanner/internal/procexec"
)

// FakeRunner stands in for the capture binary. Presence probes succeed while
// Lidar is set; capture calls write a small frame file unless FailCapture is
// set.
type FakeRunner struct {
	mu          sync.Mutex
	lidar       bool
	failCapture bool
	frameDelay  time.Duration
	captures    int
}

// NewFakeRunner returns a runner with a connected sensor.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{lidar: true, frameDelay: 5 * time.Millisecond}
}

// SetLidar toggles sensor presence.
func (f *FakeRunner) SetLidar(v bool) {
	f.mu.Lock()
	f.lidar = v
	f.mu.Unlock()
}

// SetFailCapture makes every capture attempt fail.
func (f *FakeRunner) SetFailCapture(v bool) {
	f.mu.Lock()
	f.failCapture = v
	f.mu.Unlock()
}

// Captures returns the number of capture attempts.
func (f *FakeRunner) Captures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

// Run implements procexec.Runner.
func (f *FakeRunner) Run(ctx context.Context, _ time.Duration, _ string, args ...string) (procexec.Result, error) {
	f.mu.Lock()
	lidar := f.lidar
	fail := f.failCapture
	delay := f.frameDelay
	probe := len(args) == 1 && args[0] == presence.CheckFlag
	if !probe {
		f.captures++
	}
	f.mu.Unlock()

	if probe {
		if lidar {
			return procexec.Result{}, nil
		}
		return procexec.Result{ExitCode: 1}, nil
	}

	select {
	case <-ctx.Done():
		return procexec.Result{}, ctx.Err()
	case <-time.After(delay):
	}
	if fail || len(args) == 0 {
		return procexec.Result{ExitCode: 1, Output: []byte("capture failed")}, nil
	}
	if err := os.WriteFile(args[0], []byte("frame"), 0o644); err != nil {
		return procexec.Result{}, err
	}
	return procexec.Result{}, nil
}
