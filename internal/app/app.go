package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/alerting"
	"agent-cost-governor/internal/catalog"
	"agent-cost-governor/internal/config"
	"agent-cost-governor/internal/fetcher"
	"agent-cost-governor/internal/governor"
	"agent-cost-governor/internal/payment"
	"agent-cost-governor/internal/pricefeed"
	"agent-cost-governor/internal/recommend"
	"agent-cost-governor/internal/scheduler"
	"agent-cost-governor/internal/scorer"
	"agent-cost-governor/internal/service"
	"agent-cost-governor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newRegistry seeds candidates from config, falling back to the built-in
// provider table when none are configured.
func (a *App) newRegistry() *catalog.Registry {
	seeds := a.Config.Candidates
	if len(seeds) == 0 {
		return catalog.NewRegistry(defaultCandidates())
	}
	candidates := make([]catalog.Candidate, 0, len(seeds))
	for _, s := range seeds {
		candidates = append(candidates, catalog.FromSeed(s))
	}
	return catalog.NewRegistry(candidates)
}

func (a *App) newFeed() *pricefeed.Feed {
	feed := pricefeed.New(a.Config.PriceFeed, a.Logger)
	for _, seed := range a.Config.Alerts {
		feed.AddAlert(seed.CandidateID, pricefeed.Condition(seed.Condition), decimal.NewFromFloat(seed.Threshold))
	}
	return feed
}

func (a *App) newSource() fetcher.PriceSource {
	return fetcher.NewHTTPSource(fetcher.HTTPOptions{
		BaseURL:   a.Config.PriceSource.BaseURL,
		Timeout:   a.Config.PriceSource.RequestTimeout,
		UserAgent: a.Config.PriceSource.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newRecommender(feed *pricefeed.Feed) *recommend.Recommender {
	sc := scorer.New(a.Config.Scorer)
	return recommend.New(feed, sc, a.Config.Recommender, a.Logger)
}

func (a *App) newGovernor(store *storage.Store) *governor.Governor {
	var txStore governor.TransactionStore
	if store != nil {
		txStore = &governorStoreAdapter{store: store}
	}
	gov := governor.New(governor.Options{
		WindowDuration: a.Config.Governor.WindowDuration,
		Store:          txStore,
	}, a.Logger)

	for _, seed := range a.Config.Governor.Principals {
		gov.Register(
			seed.ID,
			decimal.NewFromFloat(seed.Balance),
			governor.Limits{
				MaxPerTransaction: decimal.NewFromFloat(seed.MaxPerTransaction),
				MaxPerWindow:      decimal.NewFromFloat(seed.MaxPerWindow),
			},
			seed.Payees,
			governor.TopUpPolicy{
				Enabled:   seed.TopUp.Enabled,
				Threshold: decimal.NewFromFloat(seed.TopUp.Threshold),
				Amount:    decimal.NewFromFloat(seed.TopUp.Amount),
			},
		)
	}
	return gov
}

func (a *App) newAdapter() payment.Adapter {
	if a.Config.Payment.Enabled {
		return payment.NewOnChain(payment.OnChainOptions{
			RPCURL:        a.Config.Payment.RPCURL,
			TokenAddress:  a.Config.Payment.TokenAddress,
			PrivateKeyHex: a.Config.Payment.PrivateKey,
			ChainID:       a.Config.Payment.ChainID,
			TokenDecimals: a.Config.Payment.TokenDecimals,
			GasLimit:      a.Config.Payment.GasLimit,
			Timeout:       a.Config.Payment.RequestTimeout,
		}, a.Logger)
	}
	return &payment.Static{Succeed: true}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// hydrateFeed replays recent persisted samples into the feed, oldest first,
// so recommendations after a restart see live prices instead of defaults.
func (a *App) hydrateFeed(ctx context.Context, feed *pricefeed.Feed, store storage.PriceSampleStore, registry *catalog.Registry) {
	if store == nil {
		return
	}
	for _, candidate := range registry.All() {
		records, err := store.ListRecentSamples(ctx, candidate.ID, a.Config.PriceFeed.HistoryCap)
		if err != nil {
			a.Logger.Warn().Err(err).Str("candidate", candidate.ID).Msg("failed to hydrate price history")
			continue
		}
		for i := len(records) - 1; i >= 0; i-- {
			feed.RecordSample(records[i].CandidateID, records[i].Price)
		}
	}
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	registry := a.newRegistry()
	feed := a.newFeed()

	var sampleStore storage.PriceSampleStore
	var alertStore storage.AlertEventStore
	var locker storage.AdvisoryLocker
	if store != nil {
		sampleStore = store
		alertStore = store
		locker = store
	}
	a.hydrateFeed(ctx, feed, sampleStore, registry)

	unsubscribe := feed.Subscribe(func(u pricefeed.Update) {
		a.Logger.Debug().
			Str("candidate", u.CandidateID).
			Str("price", u.Price.String()).
			Str("change_pct", u.ChangePct.StringFixed(3)).
			Msg("price update")
	})
	defer unsubscribe()

	var notifier alerting.Notifier
	var channels []string
	if a.Config.Alerting.Enabled {
		notifier = a.newNotifier()
		channels = a.Config.Alerting.Channels
	}

	svc := service.New(service.Options{
		Scheduler:  sched,
		Source:     a.newSource(),
		Registry:   registry,
		Feed:       feed,
		Store:      sampleStore,
		AlertStore: alertStore,
		Notifier:   notifier,
		Channels:   channels,
		Locker:     locker,
		LockKey:    a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// governorStoreAdapter bridges governor persistence onto the pgx store.
type governorStoreAdapter struct {
	store storage.TransactionLogStore
}

func (g *governorStoreAdapter) InsertTransaction(ctx context.Context, tx governor.Transaction) error {
	return g.store.InsertTransactionRecord(ctx, storage.TransactionRecord{
		ID:          tx.ID,
		PrincipalID: tx.PrincipalID,
		Amount:      tx.Amount,
		Payee:       tx.Payee,
		ServiceType: tx.ServiceType,
		Status:      string(tx.Status),
		Reason:      tx.Reason,
		CreatedAt:   tx.CreatedAt,
	})
}

func (g *governorStoreAdapter) UpdateTransactionStatus(ctx context.Context, id string, status governor.Status, reason string, settledAt time.Time) error {
	return g.store.UpdateTransactionRecord(ctx, id, string(status), reason, settledAt)
}

// defaultCandidates mirrors the built-in provider table used when no
// candidates are configured.
func defaultCandidates() []catalog.Candidate {
	return []catalog.Candidate{
		{
			ID:             "openai-gpt4",
			Name:           "OpenAI GPT-4",
			BaseUnitCost:   decimal.NewFromFloat(0.03),
			Reliability:    0.99,
			LatencySeconds: 1.2,
			Capabilities:   []string{"coding", "analysis", "general"},
			Currencies:     []string{"USD", "USDC"},
			Automation:     catalog.LevelHigh,
			Micropayments:  true,
			GlobalReach:    true,
			Active:         true,
		},
		{
			ID:             "openai-gpt35",
			Name:           "OpenAI GPT-3.5",
			BaseUnitCost:   decimal.NewFromFloat(0.002),
			Reliability:    0.98,
			LatencySeconds: 0.8,
			Capabilities:   []string{"coding", "general"},
			Currencies:     []string{"USD", "USDC"},
			Automation:     catalog.LevelHigh,
			Micropayments:  true,
			GlobalReach:    true,
			Active:         true,
		},
		{
			ID:             "anthropic-claude",
			Name:           "Anthropic Claude",
			BaseUnitCost:   decimal.NewFromFloat(0.032),
			Reliability:    0.97,
			LatencySeconds: 1.5,
			Capabilities:   []string{"coding", "research", "analysis"},
			Currencies:     []string{"USD"},
			Automation:     catalog.LevelHigh,
			Reversible:     true,
			GlobalReach:    true,
			Active:         true,
		},
		{
			ID:             "perplexity-sonar",
			Name:           "Perplexity Sonar",
			BaseUnitCost:   decimal.NewFromFloat(0.005),
			Reliability:    0.96,
			LatencySeconds: 2.1,
			Capabilities:   []string{"research"},
			Currencies:     []string{"USD"},
			Automation:     catalog.LevelMedium,
			Micropayments:  true,
			GlobalReach:    true,
			Active:         true,
		},
	}
}
