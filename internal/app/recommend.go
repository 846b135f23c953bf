package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// RecommendOptions configure a one-shot recommendation.
type RecommendOptions struct {
	Task          string
	UserSelection string
}

// Recommend prices the task against every active candidate and prints the
// ranked result. Prices come from persisted history when the database is
// configured; otherwise candidates fall back to their declared base cost.
func (a *App) Recommend(ctx context.Context, opts RecommendOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	registry := a.newRegistry()
	feed := a.newFeed()
	if store != nil {
		a.hydrateFeed(ctx, feed, store, registry)
	}

	recommender := a.newRecommender(feed)
	rec := recommender.Recommend(opts.Task, registry.Active(), opts.UserSelection)

	fmt.Fprintf(os.Stdout, "Task: %s\n", rec.Task)
	fmt.Fprintf(os.Stdout, "Classified: %s / %s\n", rec.Classification.Domain, rec.Classification.Complexity)
	fmt.Fprintf(os.Stdout, "Prompt tokens: %d -> %d (-%.1f%%)\n\n",
		rec.TokenAnalysis.OriginalTokens, rec.TokenAnalysis.OptimizedTokens, rec.TokenAnalysis.ReductionPct)

	if rec.Top == nil {
		fmt.Fprintln(os.Stdout, "no active candidates")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tCandidate\tScore\tUnit Price\tEst. Cost\tReasoning")
	for i, c := range rec.Ranked {
		fmt.Fprintf(writer, "%d\t%s\t%.2f\t%s\t%s\t%s\n",
			i+1,
			c.Candidate.ID,
			c.Score.Score,
			c.UnitPrice.String(),
			c.EstimatedCost.StringFixed(4),
			c.Reasoning,
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "\nRecommended: %s (%s)\n", rec.Top.Candidate.ID, rec.Top.Candidate.Name)
	if opts.UserSelection != "" {
		if !rec.SelectionAvailable {
			fmt.Fprintf(os.Stdout, "Selection %q is not among known candidates\n", opts.UserSelection)
		} else if rec.PotentialSavings.IsPositive() {
			fmt.Fprintf(os.Stdout, "Switching from %s would save %s\n", opts.UserSelection, rec.PotentialSavings.StringFixed(4))
		}
	}
	return nil
}
