package recommend

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
	"agent-cost-governor/internal/promptopt"
	"agent-cost-governor/internal/scorer"
)

// mapFeed is a PriceReader over a fixed price table.
type mapFeed map[string]decimal.Decimal

func (m mapFeed) CurrentPriceOr(candidateID string, fallback decimal.Decimal) decimal.Decimal {
	if price, ok := m[candidateID]; ok {
		return price
	}
	return fallback
}

func newTestRecommender(feed PriceReader) *Recommender {
	return New(feed, scorer.New(scorer.Config{}), Config{}, zerolog.Nop())
}

func testCandidates() []catalog.Candidate {
	return []catalog.Candidate{
		{
			ID:            "premium",
			Name:          "Premium",
			BaseUnitCost:  decimal.NewFromFloat(0.03),
			Reliability:   0.99,
			Automation:    catalog.LevelHigh,
			Micropayments: false,
			Active:        true,
		},
		{
			ID:            "budget",
			Name:          "Budget",
			BaseUnitCost:  decimal.NewFromFloat(0.002),
			Reliability:   0.98,
			Automation:    catalog.LevelHigh,
			Micropayments: true,
			Active:        true,
		},
	}
}

func TestClassifyDomains(t *testing.T) {
	r := newTestRecommender(mapFeed{})

	cases := []struct {
		task string
		want Domain
	}{
		{"implement a REST api endpoint", DomainCoding},
		{"summarize recent papers on solar panels", DomainResearch},
		{"forecast next quarter revenue from this dataset", DomainAnalysis},
		{"translate this letter", DomainGeneral},
	}
	for _, tc := range cases {
		if got := r.Classify(tc.task).Domain; got != tc.want {
			t.Fatalf("task %q: expected domain %s, got %s", tc.task, tc.want, got)
		}
	}
}

func TestClassifyComplexity(t *testing.T) {
	r := newTestRecommender(mapFeed{})

	if got := r.Classify("translate hello").Complexity; got != ComplexitySimple {
		t.Fatalf("short plain task should be simple, got %s", got)
	}
	if got := r.Classify("design a distributed cache").Complexity; got != ComplexityMedium {
		t.Fatalf("one heavy keyword should be medium, got %s", got)
	}
	heavy := "design a distributed real-time architecture with security hardening"
	if got := r.Classify(heavy).Complexity; got != ComplexityComplex {
		t.Fatalf("three heavy keywords should be complex, got %s", got)
	}
}

func TestEstimateUnitsScalesWithComplexity(t *testing.T) {
	r := newTestRecommender(mapFeed{})
	opt := promptopt.Result{Analysis: promptopt.TokenAnalysis{OptimizedTokens: 10}}

	if got := r.EstimateUnits(opt, Classification{Complexity: ComplexitySimple}); got != 10 {
		t.Fatalf("simple task should cost 10 units, got %d", got)
	}
	if got := r.EstimateUnits(opt, Classification{Complexity: ComplexityMedium}); got != 12 {
		t.Fatalf("medium multiplier 1.2 should give 12 units, got %d", got)
	}
	if got := r.EstimateUnits(opt, Classification{Complexity: ComplexityComplex}); got != 15 {
		t.Fatalf("complex multiplier 1.5 should give 15 units, got %d", got)
	}

	tiny := promptopt.Result{Analysis: promptopt.TokenAnalysis{OptimizedTokens: 1}}
	if got := r.EstimateUnits(tiny, Classification{Complexity: ComplexitySimple}); got < 1 {
		t.Fatalf("non-empty task should cost at least one unit, got %d", got)
	}
}

func TestRecommendPrefersCheaperCandidate(t *testing.T) {
	r := newTestRecommender(mapFeed{})

	rec := r.Recommend("translate this letter", testCandidates(), "")
	if rec.Top == nil {
		t.Fatal("expected a top candidate")
	}
	if rec.Top.Candidate.ID != "budget" {
		t.Fatalf("cost-sensitive profile should pick the cheap candidate, got %s", rec.Top.Candidate.ID)
	}
	if len(rec.Ranked) != 2 {
		t.Fatalf("all candidates should be ranked, got %d", len(rec.Ranked))
	}
	if rec.Top.EstimatedCost.LessThanOrEqual(decimal.Zero) {
		t.Fatalf("estimated cost should be positive, got %s", rec.Top.EstimatedCost)
	}
}

func TestRecommendDeterministic(t *testing.T) {
	r := newTestRecommender(mapFeed{})
	candidates := testCandidates()

	first := r.Recommend("implement a parser", candidates, "")
	second := r.Recommend("implement a parser", candidates, "")

	if first.Top.Candidate.ID != second.Top.Candidate.ID {
		t.Fatal("identical inputs must agree on the top candidate")
	}
	if !first.Top.EstimatedCost.Equal(second.Top.EstimatedCost) {
		t.Fatal("identical inputs must agree on the estimated cost")
	}
	if first.Classification.Domain != second.Classification.Domain ||
		first.Classification.Complexity != second.Classification.Complexity {
		t.Fatal("identical inputs must classify identically")
	}
}

func TestRecommendReportsSavings(t *testing.T) {
	r := newTestRecommender(mapFeed{})

	rec := r.Recommend("translate this letter", testCandidates(), "premium")
	if !rec.SelectionAvailable {
		t.Fatal("premium is a known candidate")
	}

	units := decimal.NewFromInt(rec.Top.EstimatedUnits)
	want := decimal.NewFromFloat(0.03).Sub(decimal.NewFromFloat(0.002)).Mul(units)
	if !rec.PotentialSavings.Equal(want) {
		t.Fatalf("expected savings %s, got %s", want, rec.PotentialSavings)
	}
}

func TestRecommendUnknownSelection(t *testing.T) {
	r := newTestRecommender(mapFeed{})

	rec := r.Recommend("translate this letter", testCandidates(), "nonexistent")
	if rec.SelectionAvailable {
		t.Fatal("unknown selection should be reported unavailable")
	}
	if !rec.PotentialSavings.IsZero() {
		t.Fatalf("unknown selection earns no savings figure, got %s", rec.PotentialSavings)
	}
}

func TestRecommendEmptyCandidates(t *testing.T) {
	r := newTestRecommender(mapFeed{})

	rec := r.Recommend("translate this letter", nil, "")
	if rec.Top != nil {
		t.Fatal("no candidates should yield no top pick")
	}
	if len(rec.Ranked) != 0 {
		t.Fatalf("no candidates should yield empty ranking, got %d", len(rec.Ranked))
	}
}

func TestRecommendUsesLivePrices(t *testing.T) {
	// Live feed inverts the declared cost order.
	feed := mapFeed{
		"premium": decimal.NewFromFloat(0.001),
		"budget":  decimal.NewFromFloat(0.05),
	}
	r := newTestRecommender(feed)

	rec := r.Recommend("translate this letter", testCandidates(), "")
	if rec.Top.Candidate.ID != "premium" {
		t.Fatalf("live prices should drive the ranking, got %s", rec.Top.Candidate.ID)
	}
}

func TestDeriveProfile(t *testing.T) {
	simple := deriveProfile(Classification{Domain: DomainGeneral, Complexity: ComplexitySimple})
	if simple.CostSensitivity != catalog.LevelHigh {
		t.Fatal("cost sensitivity is always high")
	}
	if !simple.Micropayments {
		t.Fatal("simple tasks should prefer micropayment support")
	}

	complexTask := deriveProfile(Classification{Domain: DomainResearch, Complexity: ComplexityComplex})
	if complexTask.Automation != catalog.LevelHigh {
		t.Fatal("complex tasks should demand high automation")
	}
	if !complexTask.GlobalReach {
		t.Fatal("research tasks should prefer global reach")
	}

	analysis := deriveProfile(Classification{Domain: DomainAnalysis, Complexity: ComplexityMedium})
	if !analysis.Reversibility {
		t.Fatal("analysis tasks should prefer reversibility")
	}
}
