package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"tecscanner/internal/config"
)

// Requirement defines an external executable the scanner relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// Requirements lists the executables named by cfg. The converter is optional
// and only listed when configured.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{{
		Name:        "Capture",
		Command:     cfg.Recorder.CaptureCommand,
		Description: "Captures one point-cloud frame per invocation",
	}}
	if strings.TrimSpace(cfg.Recorder.ConvertCommand) != "" {
		reqs = append(reqs, Requirement{
			Name:        "Converter",
			Command:     cfg.Recorder.ConvertCommand,
			Description: "Exports each frame to a companion file",
			Optional:    true,
		})
	}
	return reqs
}

// Resolve looks up command on PATH and returns its absolute location.
func Resolve(command string) (string, bool) {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return "", false
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return "", false
	}
	return path, true
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, ok := Resolve(cmd)
		if !ok {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}
