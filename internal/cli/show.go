package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agent-cost-governor/internal/app"
)

var (
	showCandidate    string
	showLimit        int
	showTransactions bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent price samples or ledger entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			CandidateID:  showCandidate,
			Limit:        showLimit,
			Transactions: showTransactions,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showCandidate, "candidate", "", "Candidate ID whose samples to display")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showTransactions, "transactions", false, "Display governor ledger entries instead of samples")
}
