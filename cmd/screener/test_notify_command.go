package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"screener/internal/apiclient"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.TestNotification(cmd.Context())
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && apiErr.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), apiErr.Message)
				}
				if err != nil {
					return err
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				case resp.Sent:
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent")
				}
				return nil
			})
		},
	}
}
