package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tecscanner/internal/api"
	"tecscanner/internal/ipc"
	"tecscanner/internal/sessionlog"
)

const timeLayout = "2006-01-02 15:04:05"

func newSessionCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				if !resp.Started {
					return startRefusal(resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording started")
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "No active recording")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording stopped")
				return nil
			})
		},
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the recordings log of the attached drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List()
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, api.FromEntries(resp.Recordings))
				}
				if len(resp.Recordings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recordings")
					return nil
				}
				writeTable(cmd.OutOrStdout(), recordingColumns, buildRecordingRows(resp.Recordings))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output JSON")

	var historyLimit int
	var historyJSON bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled sessions across drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(historyLimit)
				if err != nil {
					return err
				}
				if historyJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions journaled")
					return nil
				}
				writeTable(cmd.OutOrStdout(), historyColumns, buildHistoryRows(resp.Sessions))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of sessions to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output JSON")

	return []*cobra.Command{startCmd, stopCmd, listCmd, historyCmd}
}

func startRefusal(resp *ipc.StartResponse) error {
	if resp == nil {
		return errors.New("start response missing")
	}
	code := strings.TrimSpace(resp.Error)
	if code == "" {
		return errors.New("recording not started")
	}
	return fmt.Errorf("recording not started: %s (%s)", humanLabel(code), code)
}

func buildRecordingRows(entries []sessionlog.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Folder,
			formatTime(e.Started),
			e.Duration().Round(time.Second).String(),
			strconv.Itoa(e.Frames),
			resultLabel(e.Error),
		})
	}
	return rows
}

func buildHistoryRows(sessions []api.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Mount,
			s.Folder,
			formatTime(s.Started),
			strconv.Itoa(s.Frames),
			resultLabel(s.Error),
		})
	}
	return rows
}

func resultLabel(code string) string {
	if strings.TrimSpace(code) == "" {
		return "OK"
	}
	return humanLabel(code)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
