package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"screener/internal/apiclient"
	"screener/internal/taskclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			addr, err := ctx.serverAddress()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not reachable at "+addr, colorize))
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}

				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running at "+addr, colorize))
				fmt.Fprintln(out, renderStatusLine("Endpoint", statusInfo, status.Endpoint, colorize))
				fmt.Fprintln(out, renderStatusLine("Active runs", statusInfo, strconv.Itoa(status.ActiveRuns), colorize))
				fmt.Fprintln(out, renderStatusLine("Agent card", statusInfo, baseURL(addr)+taskclient.WellKnownPath, colorize))

				rows := make([][]string, 0, len(status.Stages))
				for _, h := range status.Stages {
					rows = append(rows, []string{h.Name, yesNo(h.Ready), h.Detail})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Stage", "Ready", "Detail"}, rows, nil, colorize))
				if !status.Ready() {
					fmt.Fprintln(out, renderStatusLine("Workers", statusWarn, "some stages are not ready; runs will fail there", colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status")
	return cmd
}

func baseURL(addr string) string {
	addr = strings.TrimRight(addr, "/")
	if strings.Contains(addr, "://") {
		return addr
	}
	return "http://" + addr
}
