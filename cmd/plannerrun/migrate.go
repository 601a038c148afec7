package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the clientes table and queue columns if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			defer l.Sync()

			database, err := connectDB(cmd.Context(), cfg.DB, l)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.EnsureSchema(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			l.Infow("Schema is up to date")
			return nil
		},
	}
}
