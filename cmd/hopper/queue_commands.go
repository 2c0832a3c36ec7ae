package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"hopper/internal/api"
	"hopper/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the download queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))

	return queueCmd
}

// activeJobs prefers the daemon's view and falls back to reading the
// database directly when no daemon is running.
func (c *commandContext) activeJobs(ctx context.Context) ([]api.Job, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	if client.Running(ctx) {
		return client.Queue(ctx)
	}
	var jobs []api.Job
	err = c.withStore(func(store *queue.Store) error {
		items, err := store.ActiveJobs(ctx)
		if err != nil {
			return err
		}
		jobs = api.FromJobs(items)
		return nil
	})
	return jobs, err
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active jobs in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ctx.activeJobs(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					truncateTitle(job.Title, 48),
					job.Mode,
					statusLabel(job.Status),
					formatProgress(job.Status, job.ProgressPercent),
					job.Speed,
					formatAge(job.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Mode", "Status", "Progress", "Speed", "Added"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var counts map[string]int

			client, err := ctx.client()
			if err != nil {
				return err
			}
			if status, statusErr := client.Status(cmd.Context()); statusErr == nil {
				counts = status.Counts
			} else {
				err = ctx.withStore(func(store *queue.Store) error {
					stats, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					counts = api.MergeStats(stats)
					return nil
				})
				if err != nil {
					return err
				}
			}

			keys := make([]string, 0, len(counts))
			total := 0
			for key, count := range counts {
				keys = append(keys, key)
				total += count
			}
			if total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				if counts[key] == 0 {
					continue
				}
				rows = append(rows, []string{statusLabel(key), fmt.Sprintf("%d", counts[key])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var page *api.HistoryResponse

			client, err := ctx.client()
			if err != nil {
				return err
			}
			if client.Running(cmd.Context()) {
				page, err = client.History(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
			} else {
				err = ctx.withStore(func(store *queue.Store) error {
					jobs, err := store.History(cmd.Context(), limit, offset)
					if err != nil {
						return err
					}
					total, err := store.HistoryCount(cmd.Context())
					if err != nil {
						return err
					}
					page = &api.HistoryResponse{Jobs: api.FromJobs(jobs), Total: total, Limit: limit, Offset: offset}
					return nil
				})
				if err != nil {
					return err
				}
			}

			if len(page.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No finished jobs")
				return nil
			}
			rows := make([][]string, 0, len(page.Jobs))
			for _, job := range page.Jobs {
				rows = append(rows, []string{
					job.ID,
					truncateTitle(job.Title, 48),
					job.Mode,
					statusLabel(job.Status),
					formatSize(job.FileSize),
					formatAge(job.CompletedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Mode", "Status", "Size", "Finished"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			if page.Total > offset+len(page.Jobs) {
				fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d finished jobs\n", offset+len(page.Jobs), page.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of jobs to skip")

	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				var removed int64
				var err error
				if clearAll {
					removed, err = store.Clear(cmd.Context())
				} else {
					removed, err = store.ClearTerminal(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Also remove queued and active jobs")

	return cmd
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove errored jobs only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d failed jobs\n", removed)
				return nil
			})
		},
	}
}
