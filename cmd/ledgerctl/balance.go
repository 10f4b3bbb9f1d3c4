package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkiryanov/payledger/internal/apperrors"
	"github.com/nkiryanov/payledger/internal/service/ledger"
)

func balanceCmd(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [inn]",
		Short: "Show organization balance and number of applied payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), *dsn, func(s *ledger.Service) error {
				summary, err := s.GetSummary(cmd.Context(), args[0])
				if errors.Is(err, apperrors.ErrOrganizationNotFound) {
					return fmt.Errorf("organization %s not found", args[0])
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "INN:      %s\n", summary.Organization.INN)
				fmt.Fprintf(out, "Balance:  %s\n", summary.Organization.Balance.StringFixed(2))
				fmt.Fprintf(out, "Payments: %d\n", summary.PaymentsCount)
				return nil
			})
		},
	}
}
