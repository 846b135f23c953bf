package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Outcome reports how an executed payment concluded.
type Outcome struct {
	Success bool
	Detail  string
	Fee     decimal.Decimal
	TxHash  string
}

// Adapter executes a previously authorized payment. Implementations own
// their timeout and retry policy; the caller feeds the outcome back through
// the governor's Settle so a failed execution compensates the reservation.
type Adapter interface {
	Execute(ctx context.Context, transactionID string, amount decimal.Decimal, payee string) (Outcome, error)
}
