package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkiryanov/payledger/internal/db"
)

func migrateCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations up to the latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if *dsn == "" {
				return fmt.Errorf("database connection string is required: use --database or DATABASE_URI")
			}

			if err := db.Migrate(*dsn); err != nil {
				return err
			}

			version, dirty, err := db.Version(*dsn)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}
