package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tecscanner/internal/daemonctl"
	"tecscanner/internal/ipc"
	"tecscanner/internal/recorder"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorder, storage and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Recorder", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range recorderLines(snap, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(snap.Dependencies, snap.DependencySummary, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Last Session", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snap.LastSession == nil {
				fmt.Fprintln(stdout, "No sessions journaled")
				return nil
			}
			last := snap.LastSession
			kind := statusOK
			if last.Error != "" {
				kind = statusWarn
			}
			fmt.Fprintln(stdout, renderStatusLine(last.Folder, kind,
				fmt.Sprintf("%s, %d frames, %s", resultLabel(last.Error), last.Frames, formatTime(last.Started)), colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func recorderLines(snap *daemonctl.Snapshot, colorize bool) []string {
	lines := make([]string, 0, 8)
	if snap == nil || !snap.Running || snap.Status == nil {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (run `tecscanner daemon start`)", colorize))
		lines = append(lines, storageLine(snap, colorize))
		return lines
	}

	status := snap.Status
	lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	if status.APIAddress != "" {
		lines = append(lines, renderStatusLine("HTTP API", statusInfo, status.APIAddress, colorize))
	}

	st := status.Recorder
	if !st.RecorderAvailable {
		lines = append(lines, renderStatusLine("Recorder", statusError, "Capture command not found; recordings disabled", colorize))
	}
	lines = append(lines, sessionLine(st, colorize))
	if st.Recording && st.CurrentFile != nil {
		detail := filepath.Base(*st.CurrentFile)
		if st.CurrentSize != nil {
			detail = fmt.Sprintf("%s (%s)", detail, formatBytes(uint64(*st.CurrentSize)))
		}
		lines = append(lines, renderStatusLine("Current frame", statusInfo, detail, colorize))
	}

	if st.StoragePresent && st.StoragePath != nil {
		detail := *st.StoragePath
		if st.StorageFreeBytes != nil {
			detail = fmt.Sprintf("%s (%s free)", detail, formatBytes(*st.StorageFreeBytes))
		}
		lines = append(lines, renderStatusLine("Storage", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Storage", statusWarn, "No removable drive", colorize))
	}

	switch {
	case st.LidarStreaming:
		lines = append(lines, renderStatusLine("Lidar", statusOK, "Streaming", colorize))
	case st.LidarDetected:
		lines = append(lines, renderStatusLine("Lidar", statusOK, "Detected", colorize))
	default:
		lines = append(lines, renderStatusLine("Lidar", statusWarn, "Not detected", colorize))
	}

	switch {
	case st.LogError && st.ArchiveError:
		lines = append(lines, renderStatusLine("Recordings log", statusError, "Log and archive writes failing", colorize))
	case st.LogError:
		lines = append(lines, renderStatusLine("Recordings log", statusError, "Log write failing", colorize))
	case st.ArchiveError:
		lines = append(lines, renderStatusLine("Recordings log", statusWarn, "Archive write failing", colorize))
	default:
		lines = append(lines, renderStatusLine("Recordings log", statusOK, "Healthy", colorize))
	}
	return lines
}

func sessionLine(st recorder.Status, colorize bool) string {
	if !st.Recording || st.CurrentSession == nil {
		return renderStatusLine("Session", statusInfo, humanLabel(string(st.State)), colorize)
	}
	detail := fmt.Sprintf("%s, %d frames", *st.CurrentSession, st.FramesRecorded)
	if st.Started != nil {
		detail = fmt.Sprintf("%s, %s elapsed", detail, time.Since(*st.Started).Round(time.Second))
	}
	return renderStatusLine("Session", statusOK, detail, colorize)
}

func storageLine(snap *daemonctl.Snapshot, colorize bool) string {
	if snap == nil {
		return renderStatusLine("Storage", statusInfo, "Unknown", colorize)
	}
	if snap.Storage.Passed {
		return renderStatusLine("Storage", statusOK, snap.Storage.Detail, colorize)
	}
	return renderStatusLine("Storage", statusWarn, snap.Storage.Detail, colorize)
}

func dependencyLines(deps []ipc.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Path != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Path)
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
