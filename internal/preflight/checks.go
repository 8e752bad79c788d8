package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"tecscanner/internal/config"
	"tecscanner/internal/deps"
	"tecscanner/internal/presence"
	"tecscanner/internal/procexec"
	"tecscanner/internal/storage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinaries reports the capture binary first, then the optional converter.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, st := range statuses {
		result := Result{Name: st.Name, Passed: st.Available, Optional: st.Optional}
		if st.Available {
			result.Detail = st.Path
		} else {
			result.Detail = st.Detail
		}
		results = append(results, result)
	}
	return results
}

// CheckStorage resolves removable storage and reports its free space.
func CheckStorage(cfg *config.Config) Result {
	locator := storage.NewLocator(storage.Options{
		Roots:         cfg.Storage.MountRoots,
		MountTable:    cfg.Storage.MountTable,
		RecordingsDir: cfg.Storage.RecordingsDir,
		LogsDir:       cfg.Storage.LogsDir,
	}, nil)
	mount, ok := locator.Resolve()
	if !ok {
		return Result{
			Name:   "Removable storage",
			Detail: fmt.Sprintf("no writable mount under %s", strings.Join(cfg.Storage.MountRoots, ", ")),
		}
	}
	usage, err := storage.StatUsage(mount.Path)
	if err != nil {
		return Result{Name: "Removable storage", Passed: true, Detail: fmt.Sprintf("%s (free space unknown: %v)", mount.Path, err)}
	}
	return Result{
		Name:   "Removable storage",
		Passed: true,
		Detail: fmt.Sprintf("%s (%s free of %s)", mount.Path, formatBytes(usage.FreeBytes), formatBytes(usage.TotalBytes)),
	}
}

// CheckSensor runs one bounded presence probe.
func CheckSensor(ctx context.Context, cfg *config.Config, runner procexec.Runner) Result {
	command, ok := deps.Resolve(cfg.Recorder.CaptureCommand)
	if !ok {
		return Result{Name: "Sensor", Detail: "capture command not found"}
	}
	detector := presence.New(presence.Options{
		Command: command,
		Timeout: cfg.ProbeTimeout(),
	}, runner, nil, nil)
	if detector.Probe(ctx) {
		return Result{Name: "Sensor", Passed: true, Detail: "responding"}
	}
	return Result{Name: "Sensor", Detail: fmt.Sprintf("no response within %s", cfg.ProbeTimeout())}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
