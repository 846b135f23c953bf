package recommend

import "strings"

// Domain is the heuristic task category.
type Domain string

const (
	DomainCoding   Domain = "coding"
	DomainResearch Domain = "research"
	DomainAnalysis Domain = "analysis"
	DomainGeneral  Domain = "general"
)

// Complexity is the heuristic effort tier.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// codingKeywords flag implementation work.
var codingKeywords = []string{
	"code", "implement", "function", "api", "bug", "refactor",
	"typescript", "python", "golang", "component", "endpoint", "script",
}

// researchKeywords flag information-gathering work.
var researchKeywords = []string{
	"research", "find", "search", "summarize", "compare", "investigate",
	"sources", "literature", "survey",
}

// analysisKeywords flag data or reasoning work.
var analysisKeywords = []string{
	"analyze", "analysis", "chart", "metric", "forecast", "statistics",
	"dataset", "trend", "evaluate",
}

// complexityKeywords mark signals of heavy tasks.
var complexityKeywords = []string{
	"machine learning", "neural network", "distributed", "microservices",
	"real-time", "concurrent", "optimization", "scalability", "migration",
	"architecture", "security", "asynchronous",
}

// Classification is the derived domain and complexity of a task.
type Classification struct {
	Domain     Domain
	Complexity Complexity
	Signals    []string
}

// classifierConfig tunes the length thresholds.
type classifierConfig struct {
	mediumTokens  int
	complexTokens int
}

// Classify derives a task's domain and complexity from text signals alone:
// keyword hits and prompt length, no model calls, no randomness.
func classify(task string, cfg classifierConfig) Classification {
	lower := strings.ToLower(task)
	tokens := len(strings.Fields(task))

	domain := DomainGeneral
	var signals []string
	for _, kw := range codingKeywords {
		if strings.Contains(lower, kw) {
			domain = DomainCoding
			signals = append(signals, kw)
			break
		}
	}
	if domain == DomainGeneral {
		for _, kw := range researchKeywords {
			if strings.Contains(lower, kw) {
				domain = DomainResearch
				signals = append(signals, kw)
				break
			}
		}
	}
	if domain == DomainGeneral {
		for _, kw := range analysisKeywords {
			if strings.Contains(lower, kw) {
				domain = DomainAnalysis
				signals = append(signals, kw)
				break
			}
		}
	}

	heavy := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			heavy++
			signals = append(signals, kw)
		}
	}

	complexity := ComplexitySimple
	switch {
	case heavy >= 3 || tokens >= cfg.complexTokens:
		complexity = ComplexityComplex
	case heavy >= 1 || tokens >= cfg.mediumTokens:
		complexity = ComplexityMedium
	}

	return Classification{Domain: domain, Complexity: complexity, Signals: signals}
}
