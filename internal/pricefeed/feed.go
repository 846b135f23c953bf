package pricefeed

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config tunes history retention, update significance, and trend detection.
type Config struct {
	HistoryCap           int           `mapstructure:"history_cap"`
	DefaultPrice         float64       `mapstructure:"default_price"`
	SignificantChangePct float64       `mapstructure:"significant_change_pct"`
	TrendDeadbandPct     float64       `mapstructure:"trend_deadband_pct"`
	TrendWindow          int           `mapstructure:"trend_window"`
	AlertCooldown        time.Duration `mapstructure:"alert_cooldown"`
}

// Sample is one observed unit cost for a candidate. Immutable once recorded.
type Sample struct {
	CandidateID string
	Price       decimal.Decimal
	ObservedAt  time.Time
}

// Update describes a significant price movement pushed to subscribers.
type Update struct {
	CandidateID string
	Previous    decimal.Decimal
	Price       decimal.Decimal
	ChangePct   decimal.Decimal
	ObservedAt  time.Time
	Fired       []Alert
}

// Feed tracks live unit cost per candidate and surfaces trend, volatility,
// and threshold alerts. Reads never block on the network: the refresh loop
// writes through RecordSample and readers see whole committed samples.
type Feed struct {
	mu       sync.RWMutex
	cfg      Config
	history  map[string]*ring
	alerts   map[string]*Alert
	alertIDs []string
	subs     map[int]func(Update)
	nextSub  int
	clock    func() time.Time
	logger   zerolog.Logger
}

// New constructs a price feed.
func New(cfg Config, logger zerolog.Logger) *Feed {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 100
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 5
	}
	return &Feed{
		cfg:     cfg,
		history: make(map[string]*ring),
		alerts:  make(map[string]*Alert),
		subs:    make(map[int]func(Update)),
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  logger.With().Str("component", "pricefeed").Logger(),
	}
}

// RecordSample appends an observation, evicting the oldest beyond the cap.
// When the move against the previous sample meets the significance threshold
// it evaluates alerts and fans the update out to subscribers. The returned
// Update is nil for insignificant moves and for the first sample.
func (f *Feed) RecordSample(candidateID string, price decimal.Decimal) *Update {
	now := f.clock()

	f.mu.Lock()
	h, ok := f.history[candidateID]
	if !ok {
		h = newRing(f.cfg.HistoryCap)
		f.history[candidateID] = h
	}

	var previous decimal.Decimal
	var hadPrevious bool
	if last, exists := h.last(); exists {
		previous = last.Price
		hadPrevious = true
	}

	h.push(Sample{CandidateID: candidateID, Price: price, ObservedAt: now})

	if !hadPrevious || previous.IsZero() {
		f.mu.Unlock()
		return nil
	}

	changePct := price.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
	threshold := decimal.NewFromFloat(f.cfg.SignificantChangePct)
	if changePct.Abs().LessThan(threshold) {
		f.mu.Unlock()
		return nil
	}

	update := Update{
		CandidateID: candidateID,
		Previous:    previous,
		Price:       price,
		ChangePct:   changePct,
		ObservedAt:  now,
	}
	update.Fired = f.evaluateAlertsLocked(candidateID, previous, price, changePct, now)

	subs := make([]func(Update), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		f.safeNotify(fn, update)
	}
	return &update
}

// CurrentPrice returns the latest observed price, or the configured default
// for a candidate with no history yet. Cold candidates never error.
func (f *Feed) CurrentPrice(candidateID string) decimal.Decimal {
	return f.CurrentPriceOr(candidateID, decimal.NewFromFloat(f.cfg.DefaultPrice))
}

// CurrentPriceOr returns the latest observed price, or fallback without history.
func (f *Feed) CurrentPriceOr(candidateID string, fallback decimal.Decimal) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if h, ok := f.history[candidateID]; ok {
		if last, exists := h.last(); exists {
			return last.Price
		}
	}
	return fallback
}

// History returns the retained samples for a candidate, oldest first.
func (f *Feed) History(candidateID string) []Sample {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if h, ok := f.history[candidateID]; ok {
		return h.ordered()
	}
	return nil
}

// Subscribe registers a listener invoked on every significant update.
// The returned function removes the subscription.
func (f *Feed) Subscribe(fn func(Update)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// safeNotify isolates one subscriber's panic from the rest and from the tick.
func (f *Feed) safeNotify(fn func(Update), u Update) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn().Interface("panic", r).Str("candidate", u.CandidateID).Msg("price update subscriber panicked")
		}
	}()
	fn(u)
}

// ring is a fixed-capacity circular buffer of samples.
type ring struct {
	samples []Sample
	head    int
	full    bool
}

func newRing(cap int) *ring {
	return &ring{samples: make([]Sample, 0, cap)}
}

func (r *ring) push(s Sample) {
	if !r.full && len(r.samples) < cap(r.samples) {
		r.samples = append(r.samples, s)
		if len(r.samples) == cap(r.samples) {
			r.full = true
		}
		return
	}
	r.samples[r.head] = s
	r.head = (r.head + 1) % len(r.samples)
}

func (r *ring) len() int {
	return len(r.samples)
}

func (r *ring) last() (Sample, bool) {
	if len(r.samples) == 0 {
		return Sample{}, false
	}
	if !r.full {
		return r.samples[len(r.samples)-1], true
	}
	idx := (r.head - 1 + len(r.samples)) % len(r.samples)
	return r.samples[idx], true
}

// ordered returns samples oldest first.
func (r *ring) ordered() []Sample {
	if !r.full {
		out := make([]Sample, len(r.samples))
		copy(out, r.samples)
		return out
	}
	out := make([]Sample, 0, len(r.samples))
	for i := 0; i < len(r.samples); i++ {
		out = append(out, r.samples[(r.head+i)%len(r.samples)])
	}
	return out
}
