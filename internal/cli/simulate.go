package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"agent-cost-governor/internal/app"
)

var (
	simulateCandidate string
	simulatePrices    []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Replay a price sequence through the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(simulatePrices) == 0 {
			return errors.New("at least one --price is required")
		}

		prices := make([]decimal.Decimal, 0, len(simulatePrices))
		for _, raw := range simulatePrices {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("invalid --price value %q: %w", raw, err)
			}
			if !price.IsPositive() {
				return fmt.Errorf("--price must be greater than zero, got %q", raw)
			}
			prices = append(prices, price)
		}

		opts := app.SimulateOptions{
			CandidateID: simulateCandidate,
			Prices:      prices,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCandidate, "candidate", "", "Candidate ID to replay prices for")
	simulateCmd.Flags().StringSliceVar(&simulatePrices, "price", nil, "Price to feed, repeatable in order")
}
