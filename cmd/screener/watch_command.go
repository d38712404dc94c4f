package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"screener/internal/apiclient"
	"screener/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [task-id]",
		Short: "Follow run status (all runs when no task id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := ""
			if len(args) == 1 {
				taskID = args[0]
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				var last string
				err := client.Events(cmd.Context(), taskID, func(status string) error {
					// The daemon re-emits the latest status periodically.
					if status == last {
						return nil
					}
					last = status
					fmt.Fprintln(out, formatStatus(status, colorize))
					return nil
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

// followRun streams a run's status until ctx ends. The run channel only
// exists once the daemon accepts the task, so early 404s are retried.
func followRun(ctx context.Context, client *apiclient.Client, taskID string, out io.Writer, colorize bool) {
	var last string
	for ctx.Err() == nil {
		err := client.Events(ctx, taskID, func(status string) error {
			if status != last {
				last = status
				fmt.Fprintln(out, formatStatus(status, colorize))
			}
			return nil
		})
		var apiErr *apiclient.APIError
		if err == nil || !errors.As(err, &apiErr) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func formatStatus(status string, colorize bool) string {
	stamp := time.Now().Format("15:04:05")
	kind := statusInfo
	switch {
	case status == workflow.StatusCompleted:
		kind = statusOK
	case workflow.IsFailureStatus(status):
		kind = statusError
	}
	return renderStatusLine(stamp, kind, status, colorize)
}
