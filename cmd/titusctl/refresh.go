package main

import (
	"errors"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"titus/internal/amqp"
)

var refreshReason string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask running dashboards to reload their configured source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := v.GetString("amqp_url")
		if url == "" {
			return errors.New("AMQP_URL is not set")
		}
		client, err := amqp.NewClient(url, v.GetString("amqp_exchange"), v.GetString("amqp_queue"))
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()

		msg := amqp.NewRefreshRequestMessage(refreshReason, requester())
		if err := client.PublishRefreshRequest(cmd.Context(), msg); err != nil {
			return fmt.Errorf("publish refresh request: %w", err)
		}
		logger.Info("Refresh request published", "exchange", v.GetString("amqp_exchange"), "reason", refreshReason)
		fmt.Fprintln(cmd.OutOrStdout(), "Refresh requested")
		return nil
	},
}

func requester() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "titusctl"
}

func init() {
	refreshCmd.Flags().StringVar(&refreshReason, "reason", "manual", "reason recorded with the request")
}
