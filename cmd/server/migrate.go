package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(db.MigrateUp), string(db.MigrateDown)},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := db.MigrateUp
		if len(args) == 1 {
			direction = db.MigrateDirection(args[0])
		}
		if err := db.RunMigrations(cfg.Database, direction); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("direction", string(direction)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
