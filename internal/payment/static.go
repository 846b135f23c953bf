package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Static is a fixed-outcome adapter for the authorize command's dry-run mode
// and for tests. The core stays free of randomness; any simulated failure is
// configured explicitly here.
type Static struct {
	Succeed bool
	Detail  string
	Fee     decimal.Decimal
}

// Execute returns the configured outcome.
func (s *Static) Execute(_ context.Context, transactionID string, amount decimal.Decimal, payee string) (Outcome, error) {
	detail := s.Detail
	if detail == "" && !s.Succeed {
		detail = "static adapter configured to fail"
	}
	if detail == "" {
		detail = fmt.Sprintf("paid %s to %s", amount, payee)
	}
	return Outcome{
		Success: s.Succeed,
		Detail:  detail,
		Fee:     s.Fee,
		TxHash:  "static-" + transactionID,
	}, nil
}

var _ Adapter = (*Static)(nil)
