package preflight

import (
	"context"

	"tecscanner/internal/config"
	"tecscanner/internal/procexec"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every readiness check for the given config. The sensor
// probe runs only when the capture binary resolves.
func RunAll(ctx context.Context, cfg *config.Config, runner procexec.Runner) []Result {
	if cfg == nil {
		return nil
	}
	if runner == nil {
		runner = procexec.Exec{}
	}

	binaries := CheckBinaries(cfg)

	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir)}
	results = append(results, binaries...)
	results = append(results, CheckStorage(cfg))

	if len(binaries) > 0 && binaries[0].Passed {
		results = append(results, CheckSensor(ctx, cfg, runner))
	}
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
