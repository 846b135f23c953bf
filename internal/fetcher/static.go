package fetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
)

// StaticSource serves fixed prices. Used by the simulate command and tests;
// it keeps the randomness-free contract of the core intact.
type StaticSource struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

// NewStaticSource builds a source over a fixed price table.
func NewStaticSource(prices map[string]decimal.Decimal) *StaticSource {
	cp := make(map[string]decimal.Decimal, len(prices))
	for id, p := range prices {
		cp[id] = p
	}
	return &StaticSource{prices: cp, errs: make(map[string]error)}
}

// SetPrice updates the fixed price for a candidate.
func (s *StaticSource) SetPrice(candidateID string, price decimal.Decimal) {
	s.prices[candidateID] = price
}

// FailWith makes FetchPrice return err for one candidate.
func (s *StaticSource) FailWith(candidateID string, err error) {
	s.errs[candidateID] = err
}

// FetchPrice returns the fixed price for the candidate.
func (s *StaticSource) FetchPrice(_ context.Context, candidate catalog.Candidate) (decimal.Decimal, error) {
	if err := s.errs[candidate.ID]; err != nil {
		return decimal.Decimal{}, err
	}
	price, ok := s.prices[candidate.ID]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no static price for candidate %q", candidate.ID)
	}
	return price, nil
}

var _ PriceSource = (*StaticSource)(nil)
