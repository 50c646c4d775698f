package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samirrijal/placekeeper/internal/adapters/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig("placekeeper-migrate")
		if err != nil {
			return err
		}

		db, err := postgres.New(cmd.Context(), cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		applied, err := db.Migrate(cmd.Context())
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "OK  %s\n", name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(applied))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
