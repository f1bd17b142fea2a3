package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/krobus00/price-feed-service/internal/util"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const migrationRoot = "migration/postgresql"

var errInvalidMigrationAction = errors.New("invalid migration action")

func StartMigrate(cmd *cobra.Command, args []string) {
	databaseName, _ := cmd.Flags().GetString("databaseName")
	actionType, _ := cmd.Flags().GetString("action")
	migrationName, _ := cmd.Flags().GetString("name")
	version, _ := cmd.Flags().GetInt64("version")

	migrationDir := filepath.Join(migrationRoot, databaseName)

	dbCfg, ok := config.Env.Database[databaseName]
	if !ok || dbCfg.DSN == "" {
		util.ContinueOrFatal(fmt.Errorf("database %q is not configured", databaseName))
	}

	db, err := sql.Open("postgres", dbCfg.DSN)
	util.ContinueOrFatal(err)
	defer db.Close()

	err = goose.SetDialect("postgres")
	util.ContinueOrFatal(err)

	logrus.WithFields(logrus.Fields{
		"database": databaseName,
		"action":   actionType,
		"dir":      migrationDir,
	}).Info("running migration")

	err = runMigration(context.Background(), db, migrationDir, actionType, migrationName, version)
	util.ContinueOrFatal(err)
}

func runMigration(ctx context.Context, db *sql.DB, dir, action, name string, version int64) error {
	switch action {
	case "create":
		return goose.Create(db, dir, name, "sql")
	case "up":
		return goose.UpContext(ctx, db, dir, goose.WithAllowMissing())
	case "up-by-one":
		return goose.UpByOneContext(ctx, db, dir, goose.WithAllowMissing())
	case "up-to":
		return goose.UpToContext(ctx, db, dir, version, goose.WithAllowMissing())
	case "down":
		return goose.DownContext(ctx, db, dir, goose.WithAllowMissing())
	case "down-to":
		return goose.DownToContext(ctx, db, dir, version, goose.WithAllowMissing())
	case "status":
		return goose.StatusContext(ctx, db, dir)
	case "reset":
		if err := goose.ResetContext(ctx, db, dir, goose.WithAllowMissing()); err != nil {
			return err
		}
		return goose.UpContext(ctx, db, dir, goose.WithAllowMissing())
	default:
		return fmt.Errorf("%w: %q", errInvalidMigrationAction, action)
	}
}
