package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
	"agent-cost-governor/internal/fetcher"
	"agent-cost-governor/internal/service"
)

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	CandidateID string
	Prices      []decimal.Decimal
}

// SimulateAlert drives the refresh pipeline with a fixed price sequence so
// alert conditions and notification channels can be verified end to end
// without a live quote API.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.CandidateID == "" {
		return errors.New("--candidate is required")
	}
	if len(opts.Prices) == 0 {
		return errors.New("at least one --price must be provided")
	}
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	candidate, ok := a.newRegistry().Get(opts.CandidateID)
	if !ok {
		return errors.New("unknown candidate: " + opts.CandidateID)
	}

	feed := a.newFeed()
	source := fetcher.NewStaticSource(map[string]decimal.Decimal{
		candidate.ID: opts.Prices[0],
	})

	svc := service.New(service.Options{
		Source:   source,
		Registry: catalog.NewRegistry([]catalog.Candidate{candidate}),
		Feed:     feed,
		Notifier: notifier,
		Channels: a.Config.Alerting.Channels,
	}, a.Logger)

	for i, price := range opts.Prices {
		source.SetPrice(opts.CandidateID, price)
		tick := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
		if err := svc.ProcessTick(ctx, tick); err != nil {
			return err
		}
		a.Logger.Info().
			Int("step", i+1).
			Str("price", price.String()).
			Msg("simulated price sample")
	}
	return nil
}
