package recommend

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
	"agent-cost-governor/internal/promptopt"
	"agent-cost-governor/internal/scorer"
)

// Config tunes unit estimation and classification thresholds.
type Config struct {
	UnitsPerToken     float64 `mapstructure:"units_per_token"`
	MediumMultiplier  float64 `mapstructure:"medium_multiplier"`
	ComplexMultiplier float64 `mapstructure:"complex_multiplier"`
	MediumTokens      int     `mapstructure:"medium_tokens"`
	ComplexTokens     int     `mapstructure:"complex_tokens"`
}

// CostedCandidate pairs a ranked candidate with its estimated spend.
type CostedCandidate struct {
	Candidate      catalog.Candidate
	Score          scorer.ScoreResult
	UnitPrice      decimal.Decimal
	EstimatedUnits int64
	EstimatedCost  decimal.Decimal
	Reasoning      string
}

// Recommendation is the ranked answer for one task.
type Recommendation struct {
	Task               string
	Classification     Classification
	Profile            catalog.RequirementProfile
	Top                *CostedCandidate
	Ranked             []CostedCandidate
	UserSelection      string
	SelectionAvailable bool
	PotentialSavings   decimal.Decimal
	TokenAnalysis      promptopt.TokenAnalysis
	OptimizedPrompt    string
}

// PriceReader is the slice of the price feed the recommender needs.
type PriceReader interface {
	CurrentPriceOr(candidateID string, fallback decimal.Decimal) decimal.Decimal
}

// Recommender turns a task description into a ranked recommendation.
// It is stateless beyond read-only access to the price feed; identical
// candidates, prices, and task text always yield the same top candidate.
type Recommender struct {
	feed   PriceReader
	scorer *scorer.Scorer
	cfg    Config
	logger zerolog.Logger
}

// New constructs a recommender, filling zero config values with defaults.
func New(feed PriceReader, sc *scorer.Scorer, cfg Config, logger zerolog.Logger) *Recommender {
	if cfg.UnitsPerToken <= 0 {
		cfg.UnitsPerToken = 1.0
	}
	if cfg.MediumMultiplier <= 0 {
		cfg.MediumMultiplier = 1.2
	}
	if cfg.ComplexMultiplier <= 0 {
		cfg.ComplexMultiplier = 1.5
	}
	if cfg.MediumTokens <= 0 {
		cfg.MediumTokens = 30
	}
	if cfg.ComplexTokens <= 0 {
		cfg.ComplexTokens = 80
	}
	return &Recommender{
		feed:   feed,
		scorer: sc,
		cfg:    cfg,
		logger: logger.With().Str("component", "recommender").Logger(),
	}
}

// Classify exposes the task classifier for callers and tests.
func (r *Recommender) Classify(task string) Classification {
	return classify(task, classifierConfig{mediumTokens: r.cfg.MediumTokens, complexTokens: r.cfg.ComplexTokens})
}

// EstimateUnits scales the optimized prompt's token count by the complexity
// multiplier. Estimates never drop below one unit for a non-empty task.
func (r *Recommender) EstimateUnits(opt promptopt.Result, c Classification) int64 {
	tokens := float64(opt.Analysis.OptimizedTokens)
	multiplier := 1.0
	switch c.Complexity {
	case ComplexityMedium:
		multiplier = r.cfg.MediumMultiplier
	case ComplexityComplex:
		multiplier = r.cfg.ComplexMultiplier
	}

	units := int64(math.Ceil(tokens * r.cfg.UnitsPerToken * multiplier))
	if units < 1 && tokens > 0 {
		units = 1
	}
	return units
}

// Recommend classifies the task, derives a requirement profile, prices every
// candidate at live rates, and returns the ranked recommendation. A missing
// userSelection is reported as unavailable rather than failing the request.
func (r *Recommender) Recommend(task string, candidates []catalog.Candidate, userSelection string) Recommendation {
	classification := r.Classify(task)
	profile := deriveProfile(classification)
	optimized := promptopt.Optimize(task)
	units := r.EstimateUnits(optimized, classification)

	rec := Recommendation{
		Task:            task,
		Classification:  classification,
		Profile:         profile,
		UserSelection:   userSelection,
		TokenAnalysis:   optimized.Analysis,
		OptimizedPrompt: optimized.OptimizedPrompt,
	}

	if len(candidates) == 0 {
		return rec
	}

	byID := make(map[string]catalog.Candidate, len(candidates))
	priceOf := func(id string) decimal.Decimal {
		c := byID[id]
		return r.feed.CurrentPriceOr(id, c.BaseUnitCost)
	}
	for _, c := range candidates {
		byID[c.ID] = c
	}

	scores := r.scorer.Score(candidates, profile, priceOf)

	unitsDec := decimal.NewFromInt(units)
	ranked := make([]CostedCandidate, 0, len(scores))
	for _, s := range scores {
		c := byID[s.CandidateID]
		cost := s.CurrentCost.Mul(unitsDec)
		ranked = append(ranked, CostedCandidate{
			Candidate:      c,
			Score:          s,
			UnitPrice:      s.CurrentCost,
			EstimatedUnits: units,
			EstimatedCost:  cost,
			Reasoning:      fmt.Sprintf("%s; est. %s for %d units at %s/unit", s.Explanation, cost.StringFixed(4), units, s.CurrentCost.String()),
		})
	}

	rec.Ranked = ranked
	rec.Top = &ranked[0]

	if userSelection != "" && userSelection != rec.Top.Candidate.ID {
		if selected, ok := findByID(ranked, userSelection); ok {
			rec.SelectionAvailable = true
			rec.PotentialSavings = selected.EstimatedCost.Sub(rec.Top.EstimatedCost)
		} else {
			r.logger.Debug().Str("selection", userSelection).Msg("user selection not among known candidates")
		}
	} else if userSelection != "" {
		rec.SelectionAvailable = true
	}

	return rec
}

func findByID(ranked []CostedCandidate, id string) (CostedCandidate, bool) {
	for _, c := range ranked {
		if c.Candidate.ID == id {
			return c, true
		}
	}
	return CostedCandidate{}, false
}

// deriveProfile maps the classification onto requirement weights. Cost
// sensitivity is always high: minimising spend is the point of the engine.
func deriveProfile(c Classification) catalog.RequirementProfile {
	profile := catalog.RequirementProfile{
		CostSensitivity: catalog.LevelHigh,
		Automation:      catalog.LevelMedium,
	}
	if c.Complexity == ComplexityComplex {
		profile.Automation = catalog.LevelHigh
	}
	if c.Complexity == ComplexitySimple {
		profile.Micropayments = true
	}
	if c.Domain == DomainResearch {
		profile.GlobalReach = true
	}
	if c.Domain == DomainAnalysis {
		profile.Reversibility = true
	}
	return profile
}
