/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/price-feed-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "migrate the instrument catalog schema",
	Long: `migrate runs goose migrations from migration/postgresql/<databaseName>.
Only needed when price_feed.instrument_source is "postgres".`,
	Run: bootstrap.StartMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.PersistentFlags().String("action", "up", "action create|up|up-by-one|up-to|down|down-to|reset|status")
	migrateCmd.PersistentFlags().Int64("version", 1, "target version for up-to and down-to")
	migrateCmd.PersistentFlags().String("name", "", "migration name, used by create")
	migrateCmd.PersistentFlags().String("databaseName", "price_feed", "database name in config")
}
