package pricefeed

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testConfig() Config {
	return Config{
		HistoryCap:           100,
		DefaultPrice:         0.01,
		SignificantChangePct: 5,
		TrendDeadbandPct:     2,
		TrendWindow:          3,
		AlertCooldown:        time.Hour,
	}
}

func newTestFeed(cfg Config) *Feed {
	return New(cfg, zerolog.Nop())
}

func TestCurrentPriceColdCandidate(t *testing.T) {
	feed := newTestFeed(testConfig())

	price := feed.CurrentPrice("openai-gpt4")
	if !price.Equal(decimal.NewFromFloat(0.01)) {
		t.Fatalf("cold candidate should return default price, got %s", price)
	}

	fallback := decimal.NewFromFloat(0.03)
	if got := feed.CurrentPriceOr("openai-gpt4", fallback); !got.Equal(fallback) {
		t.Fatalf("cold candidate should return fallback, got %s", got)
	}
}

func TestRecordSampleFirstSampleNoUpdate(t *testing.T) {
	feed := newTestFeed(testConfig())

	if update := feed.RecordSample("a", decimal.NewFromFloat(0.01)); update != nil {
		t.Fatalf("first sample should not produce an update, got %+v", update)
	}
	if got := feed.CurrentPrice("a"); !got.Equal(decimal.NewFromFloat(0.01)) {
		t.Fatalf("current price should reflect the sample, got %s", got)
	}
}

func TestRecordSampleInsignificantMove(t *testing.T) {
	feed := newTestFeed(testConfig())

	feed.RecordSample("a", decimal.NewFromFloat(0.010))
	if update := feed.RecordSample("a", decimal.NewFromFloat(0.0101)); update != nil {
		t.Fatalf("1%% move should be below the 5%% threshold, got %+v", update)
	}
}

func TestRecordSampleSignificantMove(t *testing.T) {
	feed := newTestFeed(testConfig())

	feed.RecordSample("a", decimal.NewFromFloat(0.010))
	update := feed.RecordSample("a", decimal.NewFromFloat(0.0105))
	if update == nil {
		t.Fatal("5% move should meet the threshold")
	}
	if !update.ChangePct.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected change of 5%%, got %s", update.ChangePct)
	}
	if !update.Previous.Equal(decimal.NewFromFloat(0.010)) {
		t.Fatalf("expected previous 0.010, got %s", update.Previous)
	}
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryCap = 5
	cfg.SignificantChangePct = 1000 // keep updates quiet
	feed := newTestFeed(cfg)

	for i := 1; i <= 8; i++ {
		feed.RecordSample("a", decimal.NewFromInt(int64(i)))
	}

	history := feed.History("a")
	if len(history) != 5 {
		t.Fatalf("history should cap at 5, got %d", len(history))
	}
	if !history[0].Price.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("oldest retained sample should be 4, got %s", history[0].Price)
	}
	if !history[4].Price.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("newest sample should be 8, got %s", history[4].Price)
	}
}

func TestAboveAlertFiresOnceWithinCooldown(t *testing.T) {
	feed := newTestFeed(testConfig())
	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	feed.clock = func() time.Time { return now }

	id := feed.AddAlert("a", ConditionAbove, decimal.NewFromFloat(0.0104))

	feed.RecordSample("a", decimal.NewFromFloat(0.010))
	update := feed.RecordSample("a", decimal.NewFromFloat(0.0105))
	if update == nil || len(update.Fired) != 1 {
		t.Fatalf("above alert should fire, got %+v", update)
	}
	if update.Fired[0].ID != id {
		t.Fatalf("unexpected alert id %s", update.Fired[0].ID)
	}
	if update.Fired[0].LastTriggeredAt == nil || !update.Fired[0].LastTriggeredAt.Equal(now) {
		t.Fatalf("fired alert should record trigger time")
	}
	if !update.Fired[0].TriggeredPrice.Equal(decimal.NewFromFloat(0.0105)) {
		t.Fatalf("fired alert should record the price, got %s", update.Fired[0].TriggeredPrice)
	}

	// Another significant move within the cooldown must not refire.
	now = now.Add(10 * time.Minute)
	update = feed.RecordSample("a", decimal.NewFromFloat(0.012))
	if update == nil {
		t.Fatal("move should still be significant")
	}
	if len(update.Fired) != 0 {
		t.Fatalf("alert should be suppressed within cooldown, fired %d", len(update.Fired))
	}

	// After the cooldown it refires.
	now = now.Add(2 * time.Hour)
	update = feed.RecordSample("a", decimal.NewFromFloat(0.015))
	if update == nil || len(update.Fired) != 1 {
		t.Fatalf("alert should refire after cooldown, got %+v", update)
	}
}

func TestBelowAndPercentChangeAlerts(t *testing.T) {
	feed := newTestFeed(testConfig())

	feed.AddAlert("a", ConditionBelow, decimal.NewFromFloat(0.008))
	feed.AddAlert("a", ConditionPercentChange, decimal.NewFromInt(10))

	feed.RecordSample("a", decimal.NewFromFloat(0.010))
	update := feed.RecordSample("a", decimal.NewFromFloat(0.0075))
	if update == nil {
		t.Fatal("25% drop should be significant")
	}
	if len(update.Fired) != 2 {
		t.Fatalf("both below and percentChange should fire, got %d", len(update.Fired))
	}
}

func TestAlertLifecycle(t *testing.T) {
	feed := newTestFeed(testConfig())

	id := feed.AddAlert("a", ConditionAbove, decimal.NewFromInt(1))
	if got := len(feed.Alerts()); got != 1 {
		t.Fatalf("expected one alert, got %d", got)
	}

	if !feed.SetAlertActive(id, false) {
		t.Fatal("SetAlertActive should find the alert")
	}
	feed.RecordSample("a", decimal.NewFromFloat(0.5))
	update := feed.RecordSample("a", decimal.NewFromInt(2))
	if update == nil {
		t.Fatal("move should be significant")
	}
	if len(update.Fired) != 0 {
		t.Fatal("inactive alert must not fire")
	}

	if !feed.RemoveAlert(id) {
		t.Fatal("RemoveAlert should find the alert")
	}
	if feed.RemoveAlert(id) {
		t.Fatal("second RemoveAlert should report unknown id")
	}
	if feed.SetAlertActive(id, true) {
		t.Fatal("SetAlertActive should report unknown id after removal")
	}
	if got := len(feed.Alerts()); got != 0 {
		t.Fatalf("expected no alerts, got %d", got)
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	feed := newTestFeed(testConfig())

	unsubscribe := feed.Subscribe(func(Update) { panic("boom") })
	defer unsubscribe()

	var received []Update
	feed.Subscribe(func(u Update) { received = append(received, u) })

	feed.RecordSample("a", decimal.NewFromFloat(0.010))
	feed.RecordSample("a", decimal.NewFromFloat(0.012))

	if len(received) != 1 {
		t.Fatalf("surviving subscriber should receive the update, got %d", len(received))
	}
}

func TestUnsubscribeStopsUpdates(t *testing.T) {
	feed := newTestFeed(testConfig())

	var count int
	unsubscribe := feed.Subscribe(func(Update) { count++ })

	feed.RecordSample("a", decimal.NewFromFloat(0.010))
	feed.RecordSample("a", decimal.NewFromFloat(0.012))
	unsubscribe()
	feed.RecordSample("a", decimal.NewFromFloat(0.015))

	if count != 1 {
		t.Fatalf("subscriber should only see updates before unsubscribe, got %d", count)
	}
}

func TestStatsTrendAndVolatility(t *testing.T) {
	cfg := testConfig()
	cfg.SignificantChangePct = 1000
	feed := newTestFeed(cfg)

	if _, ok := feed.Stats("missing"); ok {
		t.Fatal("stats for unknown candidate should report false")
	}

	// Flat history: zero volatility, stable trend.
	for i := 0; i < 6; i++ {
		feed.RecordSample("flat", decimal.NewFromInt(10))
	}
	stats, ok := feed.Stats("flat")
	if !ok {
		t.Fatal("stats should exist")
	}
	if stats.Volatility != 0 {
		t.Fatalf("constant prices should have zero volatility, got %f", stats.Volatility)
	}
	if stats.Trend != TrendStable {
		t.Fatalf("constant prices should be stable, got %s", stats.Trend)
	}
	if stats.Samples != 6 {
		t.Fatalf("expected 6 samples, got %d", stats.Samples)
	}
	if !stats.Mean.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected mean 10, got %s", stats.Mean)
	}

	// Rising second half beyond the dead-band.
	for _, p := range []int64{10, 10, 10, 20, 20, 20} {
		feed.RecordSample("up", decimal.NewFromInt(p))
	}
	stats, _ = feed.Stats("up")
	if stats.Trend != TrendUp {
		t.Fatalf("rising prices should trend up, got %s", stats.Trend)
	}
	if !stats.Min.Equal(decimal.NewFromInt(10)) || !stats.Max.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("min/max wrong: %s/%s", stats.Min, stats.Max)
	}

	// Move within the dead-band stays stable.
	for _, p := range []float64{10, 10, 10, 10.1, 10.1, 10.1} {
		feed.RecordSample("drift", decimal.NewFromFloat(p))
	}
	stats, _ = feed.Stats("drift")
	if stats.Trend != TrendStable {
		t.Fatalf("1%% drift is under the 2%% dead-band, got %s", stats.Trend)
	}

	// Falling second half.
	for _, p := range []int64{20, 20, 20, 10, 10, 10} {
		feed.RecordSample("down", decimal.NewFromInt(p))
	}
	stats, _ = feed.Stats("down")
	if stats.Trend != TrendDown {
		t.Fatalf("falling prices should trend down, got %s", stats.Trend)
	}
}

func TestStatsTooFewSamplesForTrend(t *testing.T) {
	cfg := testConfig()
	cfg.SignificantChangePct = 1000
	feed := newTestFeed(cfg)

	for _, p := range []int64{1, 5, 9} {
		feed.RecordSample("a", decimal.NewFromInt(p))
	}
	stats, ok := feed.Stats("a")
	if !ok {
		t.Fatal("stats should exist")
	}
	if stats.Trend != TrendStable {
		t.Fatalf("fewer than 2*window samples should be stable, got %s", stats.Trend)
	}
}
