package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/api"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var noPlaylist bool
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Queue a URL for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.SubmitRequest{
				URL:        strings.TrimSpace(args[0]),
				Mode:       mode,
				NoPlaylist: noPlaylist,
			}
			out := cmd.OutOrStdout()

			if checkOnly {
				resp, err := client.Check(cmd.Context(), req)
				if err != nil {
					return err
				}
				if resp.Type == api.SourcePlaylist {
					fmt.Fprintf(out, "Playlist with %d entries (total %s)\n", resp.Count, formatDuration(resp.TotalDuration))
					for _, item := range resp.Items {
						fmt.Fprintf(out, "  %s  %s\n", formatDuration(item.Duration), item.Title)
					}
					if resp.Count > len(resp.Items) {
						fmt.Fprintf(out, "  ... and %d more\n", resp.Count-len(resp.Items))
					}
					return nil
				}
				fmt.Fprintf(out, "%s\n", resp.Title)
				if resp.Channel != "" {
					fmt.Fprintf(out, "Channel:  %s\n", resp.Channel)
				}
				if resp.Duration > 0 {
					fmt.Fprintf(out, "Duration: %s\n", formatDuration(resp.Duration))
				}
				return nil
			}

			resp, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if resp.Queued == 1 {
				fmt.Fprintf(out, "Queued job %s\n", resp.IDs[0])
			} else {
				fmt.Fprintf(out, "Queued %d jobs: %s\n", resp.Queued, strings.Join(resp.IDs, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "full", "Download mode: full, text, or wav")
	cmd.Flags().BoolVar(&noPlaylist, "no-playlist", false, "Treat playlist URLs as a single video")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Probe the URL without queueing it")

	return cmd
}
