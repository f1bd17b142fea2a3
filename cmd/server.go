/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/price-feed-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Price feed server",
	Long: `Price feed server advances every instrument price once per tick and pushes
the new prices to the websocket clients subscribed to them.

This service:
- Serves the websocket feed on /ws
- Keeps subscriptions per login identity for the lifetime of the process
- Exposes health, metrics and a read-only price snapshot over http
- Optionally mirrors every tick to redis and nats jetstream`,
	Run: bootstrap.StartPriceFeedServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
