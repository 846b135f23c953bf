package promptopt

import (
	"strings"
	"testing"
)

func TestOptimizeDeterministic(t *testing.T) {
	prompt := "Can you help me in order to write a summary of the report as soon as possible"

	first := Optimize(prompt)
	second := Optimize(prompt)
	if first.OptimizedPrompt != second.OptimizedPrompt {
		t.Fatal("identical prompts must optimize identically")
	}
	if first.Analysis != second.Analysis {
		t.Fatalf("analysis should be identical: %+v vs %+v", first.Analysis, second.Analysis)
	}
}

func TestOptimizeReplacesVerbosePhrases(t *testing.T) {
	res := Optimize("I would like to ship this in order to unblock the team")

	if strings.Contains(res.OptimizedPrompt, "i would like to") {
		t.Fatalf("verbose phrase should be replaced: %q", res.OptimizedPrompt)
	}
	if strings.Contains(res.OptimizedPrompt, "in order to") {
		t.Fatalf("verbose phrase should be replaced: %q", res.OptimizedPrompt)
	}
	if !strings.Contains(res.OptimizedPrompt, "need") {
		t.Fatalf("replacement should appear: %q", res.OptimizedPrompt)
	}
}

func TestOptimizeDropsShortFillerWords(t *testing.T) {
	res := Optimize("fetch the report and send a copy to me")

	for _, filler := range []string{" the ", " and ", " a ", " to "} {
		if strings.Contains(" "+res.OptimizedPrompt+" ", filler) {
			t.Fatalf("filler %q should be dropped: %q", filler, res.OptimizedPrompt)
		}
	}
	// Long tokens stay even when listed as fillers.
	res = Optimize("please review")
	if !strings.Contains(res.OptimizedPrompt, "please") {
		t.Fatalf("long filler tokens carry context and stay: %q", res.OptimizedPrompt)
	}
}

func TestOptimizeNeverNegativeReduction(t *testing.T) {
	for _, prompt := range []string{"", "x", "ship it", "due to the fact that it broke"} {
		res := Optimize(prompt)
		if res.Analysis.TokenReduction < 0 {
			t.Fatalf("reduction must not be negative for %q", prompt)
		}
		if res.Analysis.ReductionPct < 0 || res.Analysis.ReductionPct > 100 {
			t.Fatalf("reduction pct out of range for %q: %f", prompt, res.Analysis.ReductionPct)
		}
		if res.Analysis.OptimizedTokens > res.Analysis.OriginalTokens {
			t.Fatalf("optimization must not grow the prompt %q", prompt)
		}
	}
}

func TestOptimizeEmptyPrompt(t *testing.T) {
	res := Optimize("")
	if res.OptimizedPrompt != "" {
		t.Fatalf("empty prompt stays empty, got %q", res.OptimizedPrompt)
	}
	if res.Analysis.OriginalTokens != 0 || res.Analysis.ReductionPct != 0 {
		t.Fatalf("empty prompt has zero accounting: %+v", res.Analysis)
	}
}
