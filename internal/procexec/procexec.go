// Package procexec runs external executables behind a small interface so the
// capture loop and presence detector can be exercised with fakes.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// Result describes a finished process.
type Result struct {
	ExitCode int
	Output   []byte
}

// Success reports a zero exit status.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner executes a command to completion. A non-zero exit is reported through
// Result.ExitCode with a nil error; errors mean the process could not be run
// or did not finish in time.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	return f(ctx, timeout, name, args...)
}

// Exec runs commands with os/exec. A zero timeout means no limit beyond ctx.
type Exec struct{}

// Run implements Runner.
func (Exec) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	result := Result{Output: output.Bytes()}
	if err == nil {
		return result, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		return result, fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	result.ExitCode = -1
	return result, fmt.Errorf("run %s: %w", name, err)
}
