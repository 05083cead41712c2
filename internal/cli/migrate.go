package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oneoftools/pkg/config"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the versioned SQL migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.OpenDB(cfg.Database)
		if err != nil {
			return err
		}
		defer config.CloseDB(db)
		return config.ExecuteMigrations(db, cfg.Database.MigrationsPath)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rollbackSteps <= 0 {
			return fmt.Errorf("--steps must be positive")
		}
		db, err := config.OpenDB(cfg.Database)
		if err != nil {
			return err
		}
		defer config.CloseDB(db)
		return config.RollbackMigration(db, cfg.Database.MigrationsPath, rollbackSteps)
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
