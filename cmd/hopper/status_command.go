package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hopper/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and storage health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			client, err := ctx.client()
			if err != nil {
				return err
			}
			if status, statusErr := client.Status(cmd.Context()); statusErr == nil {
				fmt.Fprintf(out, "Daemon:     running (pid %d)\n", status.PID)
				fmt.Fprintf(out, "Queue DB:   %s\n", status.QueueDBPath)
				fmt.Fprintf(out, "Lock file:  %s\n", status.LockFilePath)
				fmt.Fprintf(out, "Concurrent: %d\n", status.MaxConcurrent)
				if status.Store.Available {
					fmt.Fprintln(out, "Storage:    available")
				} else {
					fmt.Fprintf(out, "Storage:    degraded (%s)\n", status.Store.LastError)
				}
				active := status.Counts["queued"] + status.Counts["downloading"] + status.Counts["processing"]
				fmt.Fprintf(out, "Active:     %d jobs\n", active)
				return nil
			}

			fmt.Fprintln(out, "Daemon:     not running")
			return ctx.withStore(func(store *queue.Store) error {
				fmt.Fprintf(out, "Queue DB:   %s\n", store.Path())
				if store.Available() {
					fmt.Fprintln(out, "Storage:    available")
				} else if err := store.LastError(); err != nil {
					fmt.Fprintf(out, "Storage:    degraded (%v)\n", err)
				}
				return nil
			})
		},
	}
}
