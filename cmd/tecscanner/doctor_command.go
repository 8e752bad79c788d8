package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tecscanner/internal/preflight"
	"tecscanner/internal/procexec"
)

var errDoctorFailed = errors.New("one or more required checks failed")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return newDoctorCommandWithRunner(ctx, procexec.Exec{})
}

func newDoctorCommandWithRunner(ctx *commandContext, runner procexec.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check executables, storage and the sensor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			results := preflight.RunAll(cmd.Context(), cfg, runner)
			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range doctorLines(results, colorize) {
				fmt.Fprintln(stdout, line)
			}
			if preflight.Failed(results) {
				return errDoctorFailed
			}
			return nil
		},
	}
}

func doctorLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
			if r.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
