package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tecscanner/internal/preflight"
	"tecscanner/internal/presence"
	"tecscanner/internal/procexec"
	"tecscanner/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckStorage_NoDrive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := preflight.CheckStorage(cfg)
	if result.Passed {
		t.Fatalf("expected failure without a mounted drive, got %s", result.Detail)
	}
	if !strings.Contains(result.Detail, cfg.Storage.MountRoots[0]) {
		t.Fatalf("expected detail to name the mount root, got %q", result.Detail)
	}
}

func TestCheckStorage_Mounted(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountedDrive())
	result := preflight.CheckStorage(cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if !strings.Contains(result.Detail, testsupport.DrivePath(cfg)) || !strings.Contains(result.Detail, "free of") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckBinaries_MissingCapture(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Recorder.CaptureCommand = "tecscanner-missing-capture-binary"
	cfg.Recorder.ConvertCommand = ""

	results := preflight.CheckBinaries(cfg)
	if len(results) != 1 {
		t.Fatalf("expected only the capture check, got %d", len(results))
	}
	if results[0].Passed || results[0].Optional {
		t.Fatalf("expected required failure, got %+v", results[0])
	}
}

func TestCheckBinaries_ConverterOptional(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Recorder.ConvertCommand = "tecscanner-missing-converter"

	results := preflight.CheckBinaries(cfg)
	if len(results) != 2 {
		t.Fatalf("expected capture and converter checks, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("expected stubbed capture to pass: %+v", results[0])
	}
	if results[1].Passed || !results[1].Optional {
		t.Fatalf("expected optional converter failure: %+v", results[1])
	}
	if preflight.Failed(results) {
		t.Fatal("optional failure should not fail the report")
	}
}

func TestCheckSensor(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	var gotArgs []string
	runner := procexec.RunnerFunc(func(_ context.Context, _ time.Duration, _ string, args ...string) (procexec.Result, error) {
		gotArgs = args
		return procexec.Result{ExitCode: 0}, nil
	})
	result := preflight.CheckSensor(context.Background(), cfg, runner)
	if !result.Passed {
		t.Fatalf("expected sensor pass, got %s", result.Detail)
	}
	if len(gotArgs) != 1 || gotArgs[0] != presence.CheckFlag {
		t.Fatalf("expected probe flag, got %v", gotArgs)
	}

	absent := procexec.RunnerFunc(func(context.Context, time.Duration, string, ...string) (procexec.Result, error) {
		return procexec.Result{ExitCode: 1}, nil
	})
	if preflight.CheckSensor(context.Background(), cfg, absent).Passed {
		t.Fatal("expected sensor failure on non-zero exit")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithMountedDrive())
	cfg.Recorder.ConvertCommand = ""

	probes := 0
	runner := procexec.RunnerFunc(func(context.Context, time.Duration, string, ...string) (procexec.Result, error) {
		probes++
		return procexec.Result{ExitCode: 0}, nil
	})
	results := preflight.RunAll(context.Background(), cfg, runner)

	var names []string
	for _, r := range results {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "State directory,Capture,Removable storage,Sensor" {
		t.Fatalf("unexpected checks %q", got)
	}
	if preflight.Failed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
	if probes != 1 {
		t.Fatalf("expected one probe, got %d", probes)
	}
}

func TestRunAllSkipsSensorWithoutCapture(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Recorder.CaptureCommand = "tecscanner-missing-capture-binary"
	cfg.Recorder.ConvertCommand = ""

	results := preflight.RunAll(context.Background(), cfg, nil)
	for _, r := range results {
		if r.Name == "Sensor" {
			t.Fatal("sensor probe should be skipped when capture is missing")
		}
	}
	if !preflight.Failed(results) {
		t.Fatal("expected report to fail")
	}
}
