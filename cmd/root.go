/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/krobus00/price-feed-service/internal/constant"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "price-feed-service",
	Short: "Synthetic market price feed",
	Long: `price-feed-service generates synthetic price ticks for a fixed set of instruments
and pushes every tick to the websocket clients subscribed to them.

Subscriptions belong to the identity a client logs in with, so a client that
reconnects and logs in again gets its previous subscriptions back.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional, real environment variables always win
		_ = godotenv.Load()

		err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		logrus.SetReportCaller(config.Env.Log.ShowCaller)

		if config.Env.Env == constant.ProductionEnvironment {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		}

		logLevel, err := logrus.ParseLevel(config.Env.Log.LogLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(logLevel)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config.yml)")
}
