package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
)

// Points assigns the weight each criterion contributes when its gate is met.
type Points struct {
	Automation       float64 `mapstructure:"automation"`
	Decentralization float64 `mapstructure:"decentralization"`
	CostEfficiency   float64 `mapstructure:"cost_efficiency"`
	Reversibility    float64 `mapstructure:"reversibility"`
	Micropayments    float64 `mapstructure:"micropayments"`
	GlobalReach      float64 `mapstructure:"global_reach"`
}

// DefaultPoints are the reference weights; override via scorer config.
func DefaultPoints() Points {
	return Points{
		Automation:       25,
		Decentralization: 15,
		CostEfficiency:   25,
		Reversibility:    15,
		Micropayments:    10,
		GlobalReach:      10,
	}
}

// Config tunes the scorer.
type Config struct {
	Points      Points  `mapstructure:"points"`
	CheapBelow  float64 `mapstructure:"cheap_below"`
	CostlyAbove float64 `mapstructure:"costly_above"`
}

// Component records one criterion's contribution to a score.
type Component struct {
	Criterion string
	Earned    float64
	Possible  float64
	Met       bool
}

// ScoreResult is one candidate's ranked outcome. Recomputed fresh on every
// request; never cached.
type ScoreResult struct {
	CandidateID string
	Score       float64
	Components  []Component
	Explanation string
	CurrentCost decimal.Decimal
	Reliability float64
	inputIndex  int
}

// Scorer ranks candidates against a requirement profile. It is stateless:
// identical inputs always produce identical results.
type Scorer struct {
	cfg Config
}

// New constructs a scorer, filling zero-valued weights with the defaults.
func New(cfg Config) *Scorer {
	if cfg.Points == (Points{}) {
		cfg.Points = DefaultPoints()
	}
	if cfg.CheapBelow <= 0 {
		cfg.CheapBelow = 0.005
	}
	if cfg.CostlyAbove <= 0 {
		cfg.CostlyAbove = 0.02
	}
	return &Scorer{cfg: cfg}
}

// PriceFunc yields the current unit cost for a candidate id.
type PriceFunc func(candidateID string) decimal.Decimal

// Score computes a threshold-gated additive score per candidate and returns
// the results ranked. Equal scores prefer the cheaper candidate, then the
// higher declared reliability, then input order. An empty candidate set
// yields an empty result, not an error.
func (s *Scorer) Score(candidates []catalog.Candidate, profile catalog.RequirementProfile, price PriceFunc) []ScoreResult {
	results := make([]ScoreResult, 0, len(candidates))
	for i, c := range candidates {
		cost := decimal.Decimal{}
		if price != nil {
			cost = price(c.ID)
		}
		r := s.scoreOne(c, profile, cost)
		r.inputIndex = i
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].CurrentCost.Equal(results[j].CurrentCost) {
			return results[i].CurrentCost.LessThan(results[j].CurrentCost)
		}
		if results[i].Reliability != results[j].Reliability {
			return results[i].Reliability > results[j].Reliability
		}
		return results[i].inputIndex < results[j].inputIndex
	})
	return results
}

func (s *Scorer) scoreOne(c catalog.Candidate, profile catalog.RequirementProfile, cost decimal.Decimal) ScoreResult {
	pts := s.cfg.Points
	components := make([]Component, 0, 6)
	var earned, possible float64

	gate := func(criterion string, weight float64, requested, met bool) {
		if !requested || weight <= 0 {
			return
		}
		comp := Component{Criterion: criterion, Possible: weight, Met: met}
		if met {
			comp.Earned = weight
			earned += weight
		}
		possible += weight
		components = append(components, comp)
	}

	gate("automation", pts.Automation, profile.Automation > catalog.LevelNone, c.Automation.Meets(profile.Automation))
	gate("decentralization", pts.Decentralization, profile.Decentralization > catalog.LevelNone, c.Decentralization.Meets(profile.Decentralization))
	gate("cost_efficiency", pts.CostEfficiency, profile.CostSensitivity > catalog.LevelNone, s.costEfficiency(c, cost).Meets(profile.CostSensitivity))
	gate("reversibility", pts.Reversibility, profile.Reversibility, c.Reversible)
	gate("micropayments", pts.Micropayments, profile.Micropayments, c.Micropayments)
	gate("global_reach", pts.GlobalReach, profile.GlobalReach, c.GlobalReach)

	score := 0.0
	if possible > 0 {
		score = earned / possible
	}

	return ScoreResult{
		CandidateID: c.ID,
		Score:       score,
		Components:  components,
		Explanation: explain(c, components, score),
		CurrentCost: cost,
		Reliability: c.Reliability,
	}
}

// costEfficiency grades the live unit cost into a level using the configured
// bands. A missing price falls back to the declared base cost; a candidate
// with neither scores LevelNone and fails every cost gate.
func (s *Scorer) costEfficiency(c catalog.Candidate, cost decimal.Decimal) catalog.Level {
	if cost.IsZero() {
		cost = c.BaseUnitCost
	}
	if cost.IsZero() {
		return catalog.LevelNone
	}
	switch {
	case cost.LessThanOrEqual(decimal.NewFromFloat(s.cfg.CheapBelow)):
		return catalog.LevelHigh
	case cost.LessThanOrEqual(decimal.NewFromFloat(s.cfg.CostlyAbove)):
		return catalog.LevelMedium
	default:
		return catalog.LevelLow
	}
}

func explain(c catalog.Candidate, components []Component, score float64) string {
	met := make([]string, 0, len(components))
	missed := make([]string, 0, len(components))
	for _, comp := range components {
		if comp.Met {
			met = append(met, comp.Criterion)
		} else {
			missed = append(missed, comp.Criterion)
		}
	}

	b := strings.Builder{}
	fmt.Fprintf(&b, "%s scored %.2f", c.Name, score)
	if len(met) > 0 {
		fmt.Fprintf(&b, "; meets %s", strings.Join(met, ", "))
	}
	if len(missed) > 0 {
		fmt.Fprintf(&b, "; misses %s", strings.Join(missed, ", "))
	}
	return b.String()
}
