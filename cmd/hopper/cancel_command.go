package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hopper/internal/daemonctl"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			cancelled, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, daemonctl.ErrNotFound) {
					return fmt.Errorf("no job with id %s", args[0])
				}
				return err
			}
			if cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s already finished\n", args[0])
			}
			return nil
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var removeFiles bool

	cmd := &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete a finished job record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one job id is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0], removeFiles); err != nil {
				if errors.Is(err, daemonctl.ErrNotFound) {
					return fmt.Errorf("no job with id %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeFiles, "files", false, "Also delete the job's output directory")

	return cmd
}
