package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Level grades a candidate attribute or a requirement on a coarse scale.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

// ParseLevel maps a config string onto a Level. Unknown values parse to LevelNone.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow
	case "medium", "med":
		return LevelMedium
	case "high":
		return LevelHigh
	default:
		return LevelNone
	}
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return "none"
	}
}

// Meets reports whether the level satisfies a required level.
func (l Level) Meets(required Level) bool {
	return l >= required
}

// Candidate is a selectable provider, agent, or payment protocol.
// Attributes are static between monitoring ticks; only Active is toggled at runtime.
type Candidate struct {
	ID               string
	Name             string
	BaseUnitCost     decimal.Decimal
	Reliability      float64
	LatencySeconds   float64
	Capabilities     []string
	Currencies       []string
	Automation       Level
	Decentralization Level
	Reversible       bool
	Micropayments    bool
	GlobalReach      bool
	Active           bool
	QuoteURL         string
}

// RequirementProfile carries the weighted preferences of one selection request.
// It is constructed per request and never persisted.
type RequirementProfile struct {
	Automation       Level
	Decentralization Level
	CostSensitivity  Level
	Reversibility    bool
	Micropayments    bool
	GlobalReach      bool
}

// Seed is the configuration-file shape of a candidate.
type Seed struct {
	ID               string   `mapstructure:"id"`
	Name             string   `mapstructure:"name"`
	BaseUnitCost     float64  `mapstructure:"base_unit_cost"`
	Reliability      float64  `mapstructure:"reliability"`
	LatencySeconds   float64  `mapstructure:"latency_seconds"`
	Capabilities     []string `mapstructure:"capabilities"`
	Currencies       []string `mapstructure:"currencies"`
	Automation       string   `mapstructure:"automation"`
	Decentralization string   `mapstructure:"decentralization"`
	Reversible       bool     `mapstructure:"reversible"`
	Micropayments    bool     `mapstructure:"micropayments"`
	GlobalReach      bool     `mapstructure:"global_reach"`
	Active           *bool    `mapstructure:"active"`
	QuoteURL         string   `mapstructure:"quote_url"`
}

// FromSeed materialises a Candidate from its config representation.
// Candidates default to active unless explicitly disabled.
func FromSeed(s Seed) Candidate {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return Candidate{
		ID:               s.ID,
		Name:             s.Name,
		BaseUnitCost:     decimal.NewFromFloat(s.BaseUnitCost),
		Reliability:      s.Reliability,
		LatencySeconds:   s.LatencySeconds,
		Capabilities:     append([]string{}, s.Capabilities...),
		Currencies:       append([]string{}, s.Currencies...),
		Automation:       ParseLevel(s.Automation),
		Decentralization: ParseLevel(s.Decentralization),
		Reversible:       s.Reversible,
		Micropayments:    s.Micropayments,
		GlobalReach:      s.GlobalReach,
		Active:           active,
		QuoteURL:         s.QuoteURL,
	}
}
