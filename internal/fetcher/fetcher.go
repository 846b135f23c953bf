package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
)

// PriceSource retrieves the live unit cost for one candidate. Implementations
// own their timeout and retry policy; a returned error is terminal for the
// candidate on that tick.
type PriceSource interface {
	FetchPrice(ctx context.Context, candidate catalog.Candidate) (decimal.Decimal, error)
}
