package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"agent-cost-governor/internal/alerting"
	"agent-cost-governor/internal/catalog"
	"agent-cost-governor/internal/fetcher"
	"agent-cost-governor/internal/pricefeed"
	"agent-cost-governor/internal/scheduler"
	"agent-cost-governor/internal/storage"
)

// Service orchestrates price refreshing, persistence, and alert dispatch.
type Service struct {
	scheduler  *scheduler.Scheduler
	source     fetcher.PriceSource
	registry   *catalog.Registry
	feed       *pricefeed.Feed
	store      storage.PriceSampleStore
	alertStore storage.AlertEventStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	channels []string
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// Options bundle the service dependencies.
type Options struct {
	Scheduler  *scheduler.Scheduler
	Source     fetcher.PriceSource
	Registry   *catalog.Registry
	Feed       *pricefeed.Feed
	Store      storage.PriceSampleStore
	AlertStore storage.AlertEventStore
	Notifier   alerting.Notifier
	Channels   []string
	Locker     storage.AdvisoryLocker
	LockKey    int64
}

// New constructs the monitoring service.
func New(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:  opts.Scheduler,
		source:     opts.Source,
		registry:   opts.Registry,
		feed:       opts.Feed,
		store:      opts.Store,
		alertStore: opts.AlertStore,
		notifier:   opts.Notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		channels:   opts.Channels,
		locker:     opts.Locker,
		lockKey:    opts.LockKey,
	}
}

// Run begins the refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick refreshes every active candidate once. A source failure for one
// candidate leaves its price stale and the tick continues with the rest.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	candidates := s.registry.Active()
	refreshed := 0
	stale := 0
	for _, candidate := range candidates {
		if err := s.refreshCandidate(ctx, candidate); err != nil {
			stale++
			s.logger.Warn().Err(err).Str("candidate", candidate.ID).Msg("price source failed; keeping stale price")
			continue
		}
		refreshed++
	}

	s.logger.Info().
		Time("tick", tick).
		Int("refreshed", refreshed).
		Int("stale", stale).
		Msg("refresh tick complete")
	return nil
}

func (s *Service) refreshCandidate(ctx context.Context, candidate catalog.Candidate) error {
	price, err := s.source.FetchPrice(ctx, candidate)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}
	if price.IsZero() {
		return fmt.Errorf("price source returned zero")
	}

	update := s.feed.RecordSample(candidate.ID, price)

	if s.store != nil {
		record := storage.PriceSampleRecord{
			CandidateID: candidate.ID,
			Price:       price,
			ObservedAt:  time.Now().UTC(),
		}
		if err := s.store.InsertPriceSample(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("candidate", candidate.ID).Msg("failed to persist price sample")
		}
	}

	if update == nil {
		return nil
	}

	s.logger.Info().
		Str("candidate", candidate.ID).
		Str("price", update.Price.String()).
		Str("change_pct", update.ChangePct.StringFixed(3)).
		Int("alerts_fired", len(update.Fired)).
		Msg("significant price update")

	for _, fired := range update.Fired {
		s.dispatchAlert(ctx, candidate, *update, fired)
	}
	return nil
}

func (s *Service) dispatchAlert(ctx context.Context, candidate catalog.Candidate, update pricefeed.Update, fired pricefeed.Alert) {
	triggeredAt := update.ObservedAt
	if fired.LastTriggeredAt != nil {
		triggeredAt = *fired.LastTriggeredAt
	}

	if s.alertStore != nil {
		record := storage.AlertEventRecord{
			AlertID:     fired.ID,
			CandidateID: candidate.ID,
			Condition:   string(fired.Condition),
			Threshold:   fired.Threshold,
			Price:       update.Price,
			ChangePct:   update.ChangePct,
			TriggeredAt: triggeredAt,
		}
		if _, err := s.alertStore.InsertAlertEvent(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("alert", fired.ID).Msg("failed to persist alert event")
		}
	}

	if s.notifier == nil {
		return
	}
	note := alerting.Notification{
		AlertID:       fired.ID,
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
		Condition:     string(fired.Condition),
		Threshold:     fired.Threshold,
		Price:         update.Price,
		PreviousPrice: update.Previous,
		ChangePct:     update.ChangePct,
		TriggeredAt:   triggeredAt,
		Channels:      s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("alert", fired.ID).Msg("failed to dispatch alert")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
