package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tecscanner/internal/ipc"
	"tecscanner/internal/logging"
)

const followInterval = 500 * time.Millisecond

func newLogCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "log [name]",
		Short: "Display a diagnostic log from the drive",
		Long:  "Display a diagnostic log from the drive's logs directory. Defaults to the daemon's own log.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := logging.StorageLogName
			if len(args) == 1 {
				name = args[0]
			}
			if lines < 0 {
				lines = 0
			}

			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.GetLog(ipc.GetLogRequest{Name: name, Lines: lines, Offset: -1})
				if err != nil {
					return fmt.Errorf("read log: %w", err)
				}
				if !resp.Found {
					return fmt.Errorf("log %q not found on the drive", name)
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					if len(resp.Lines) == 0 {
						fmt.Fprintln(out, "No log entries available")
					}
					return nil
				}

				offset := resp.Offset
				ticker := time.NewTicker(followInterval)
				defer ticker.Stop()
				for {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-ticker.C:
					}
					next, err := client.GetLog(ipc.GetLogRequest{Name: name, Offset: offset})
					if err != nil {
						return fmt.Errorf("follow log: %w", err)
					}
					if !next.Found {
						fmt.Fprintf(out, "Log %s is no longer available\n", name)
						return nil
					}
					for _, line := range next.Lines {
						fmt.Fprintln(out, line)
					}
					offset = next.Offset
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show (0 for all)")
	return cmd
}
