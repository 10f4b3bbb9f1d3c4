package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkiryanov/payledger/internal/service/ledger"
)

var errLedgerInconsistent = errors.New("ledger is inconsistent")

func reconcileCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check every organization balance equals the sum of its balance log",
		Long: `Check every organization balance equals the sum of its balance log.

Exits with non-zero code if any organization does not match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), *dsn, func(s *ledger.Service) error {
				discrepancies, err := s.Reconcile(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(discrepancies) == 0 {
					fmt.Fprintln(out, "Ledger is consistent")
					return nil
				}

				for _, d := range discrepancies {
					fmt.Fprintf(out, "INN %s: balance %s, balance log total %s\n",
						d.INN, d.Balance.StringFixed(2), d.LogTotal.StringFixed(2))
				}
				return fmt.Errorf("%w: %d organizations", errLedgerInconsistent, len(discrepancies))
			})
		},
	}
}
