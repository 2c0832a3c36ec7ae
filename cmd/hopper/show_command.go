package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hopper/internal/api"
	"hopper/internal/daemonctl"
	"hopper/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Display details for a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			var job *api.Job
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if client.Running(cmd.Context()) {
				job, err = client.Job(cmd.Context(), id)
				if err != nil && !errors.Is(err, daemonctl.ErrNotFound) {
					return err
				}
			} else {
				err = ctx.withStore(func(store *queue.Store) error {
					record, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if record != nil {
						converted := api.FromJob(record)
						job = &converted
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			if job == nil {
				return fmt.Errorf("no job with id %s", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", job.ID)
			fmt.Fprintf(out, "Title:    %s\n", job.Title)
			if job.Channel != "" {
				fmt.Fprintf(out, "Channel:  %s\n", job.Channel)
			}
			fmt.Fprintf(out, "URL:      %s\n", job.URL)
			fmt.Fprintf(out, "Mode:     %s\n", job.Mode)
			fmt.Fprintf(out, "Status:   %s\n", statusLabel(job.Status))
			if job.Duration > 0 {
				fmt.Fprintf(out, "Duration: %s\n", formatDuration(job.Duration))
			}
			if job.Status == "downloading" {
				fmt.Fprintf(out, "Progress: %s", formatProgress(job.Status, job.ProgressPercent))
				if job.Speed != "" {
					fmt.Fprintf(out, " at %s", job.Speed)
				}
				if job.ETA != "" {
					fmt.Fprintf(out, " (ETA %s)", job.ETA)
				}
				fmt.Fprintln(out)
			}
			if job.OutputDir != "" {
				fmt.Fprintf(out, "Output:   %s\n", job.OutputDir)
			}
			if job.FileSize > 0 {
				fmt.Fprintf(out, "Size:     %s\n", formatSize(job.FileSize))
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
			}
			fmt.Fprintf(out, "Added:    %s\n", formatAge(job.CreatedAt))
			if job.CompletedAt != "" {
				fmt.Fprintf(out, "Finished: %s\n", formatAge(job.CompletedAt))
			}
			return nil
		},
	}
}
