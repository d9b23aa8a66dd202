package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spec-kit/druginsight-api/internal/persistence"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck
		if e.cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required")
		}
		return persistence.RunMigrations(e.cfg.Postgres.DSN, e.logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSteps <= 0 {
			return errors.New("--steps must be positive")
		}
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck
		if e.cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required")
		}
		return persistence.RollbackMigrations(e.cfg.Postgres.DSN, migrateSteps, e.logger)
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
