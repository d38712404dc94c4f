package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"screener/internal/apiclient"
	"screener/internal/runstate"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "inspect <task-id>",
		Short: "Show the state of a running or recently finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				snap, err := client.Run(cmd.Context(), args[0])
				if errors.Is(err, apiclient.ErrNotFound) {
					return fmt.Errorf("run %s is not known to the daemon (finished runs are kept for a limited time)", args[0])
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, snap)
				}
				printSnapshot(cmd, snap)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw snapshot")
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap runstate.Snapshot) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	kind := statusInfo
	switch {
	case snap.Failure != nil:
		kind = statusError
	case snap.Phase == runstate.PhaseCompleted:
		kind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Task", statusInfo, snap.TaskID, colorize))
	fmt.Fprintln(out, renderStatusLine("Job title", statusInfo, snap.JobTitle, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", kind, snap.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Resumes", statusInfo, fmt.Sprintf("%d submitted, %d parsed", snap.InputCount, len(snap.StageOutputs.Parsed)), colorize))
	completed := make([]string, 0, len(snap.CompletedStages))
	for _, name := range snap.CompletedStages {
		completed = append(completed, string(name))
	}
	fmt.Fprintln(out, renderStatusLine("Stages done", statusInfo, strings.Join(completed, ", "), colorize))
	fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, snap.UpdatedAt.Local().Format("2006-01-02 15:04:05"), colorize))
	if snap.Failure != nil {
		fmt.Fprintln(out, renderStatusLine("Failure", statusError,
			fmt.Sprintf("%s (%s): %s", snap.Failure.Stage, snap.Failure.Kind, snap.Failure.Detail), colorize))
	}

	if len(snap.StageOutputs.Ranked) > 0 {
		fmt.Fprintln(out, "\nRanking:")
		fmt.Fprintln(out, renderRanked(snap.StageOutputs.Ranked, colorize))
	}
	if snap.Phase == runstate.PhaseCompleted || len(snap.StageOutputs.Scheduled) > 0 {
		fmt.Fprintln(out, "\nInterviews:")
		fmt.Fprintln(out, renderSchedules(snap.StageOutputs.Scheduled, colorize))
	}
	if len(snap.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		fmt.Fprintln(out, renderWarnings(snap.Warnings, colorize))
	}
}
