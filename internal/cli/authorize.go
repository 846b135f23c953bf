package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"agent-cost-governor/internal/app"
)

var (
	authorizePrincipal string
	authorizeAmount    string
	authorizePayee     string
	authorizeService   string
	authorizeExecute   bool
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize a payment against a principal's spending limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		if authorizePrincipal == "" {
			return errors.New("--principal is required")
		}
		if authorizePayee == "" {
			return errors.New("--payee is required")
		}

		amount, err := decimal.NewFromString(authorizeAmount)
		if err != nil {
			return fmt.Errorf("invalid --amount value: %w", err)
		}
		if !amount.IsPositive() {
			return errors.New("--amount must be greater than zero")
		}

		opts := app.AuthorizeOptions{
			PrincipalID: authorizePrincipal,
			Amount:      amount,
			Payee:       authorizePayee,
			ServiceType: authorizeService,
			Execute:     authorizeExecute,
		}
		return getApp().Authorize(cmd.Context(), opts)
	},
}

func init() {
	authorizeCmd.Flags().StringVar(&authorizePrincipal, "principal", "", "Principal ID to charge")
	authorizeCmd.Flags().StringVar(&authorizeAmount, "amount", "", "Payment amount in budget units")
	authorizeCmd.Flags().StringVar(&authorizePayee, "payee", "", "Payee identifier")
	authorizeCmd.Flags().StringVar(&authorizeService, "service", "", "Service type label for the ledger")
	authorizeCmd.Flags().BoolVar(&authorizeExecute, "execute", false, "Execute the payment via the configured adapter after authorization")
}
