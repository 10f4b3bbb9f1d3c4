package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nkiryanov/payledger/internal/db"
	"github.com/nkiryanov/payledger/internal/repository/postgres"
	"github.com/nkiryanov/payledger/internal/service/ledger"
)

var Version = "dev"

func main() {
	if err := rootCmd(os.Getenv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(getenv func(string) string) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerctl - operator tool for the payledger database",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&dsn, "database", "d", getenv("DATABASE_URI"), "Database connection string (default $DATABASE_URI)")

	// Add subcommands
	cmd.AddCommand(migrateCmd(&dsn))
	cmd.AddCommand(reconcileCmd(&dsn))
	cmd.AddCommand(balanceCmd(&dsn))

	return cmd
}

// Connect to the database and run fn with the ledger service
func withLedger(ctx context.Context, dsn string, fn func(s *ledger.Service) error) error {
	if dsn == "" {
		return fmt.Errorf("database connection string is required: use --database or DATABASE_URI")
	}

	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(newLedgerService(pool))
}

func newLedgerService(pool *pgxpool.Pool) *ledger.Service {
	return ledger.NewService(postgres.NewStorage(pool))
}
