/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/price-feed-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the price feed as a websocket client",
	Long: `watch connects to a running price feed server, logs in with the given identity,
subscribes to the given instruments and logs every event it receives.`,
	Run: bootstrap.StartPriceFeedWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("url", "ws://localhost:4000/ws", "price feed websocket url")
	watchCmd.Flags().String("identity", "", "identity to log in with, e.g. an email address")
	watchCmd.Flags().StringSlice("instruments", nil, "instruments to subscribe to, e.g. GOOG,TSLA")
}
