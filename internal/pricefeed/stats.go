package pricefeed

import (
	"math"

	"github.com/shopspring/decimal"
)

// Trend classifies the recent price direction.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Stats summarises the retained history for one candidate.
type Stats struct {
	Current    decimal.Decimal
	Mean       decimal.Decimal
	Min        decimal.Decimal
	Max        decimal.Decimal
	Volatility float64
	Trend      Trend
	Samples    int
}

// Stats computes current, mean, min, max, coefficient-of-variation volatility,
// and a dead-banded trend over the retained history. The second return is
// false for candidates with no history.
func (f *Feed) Stats(candidateID string) (Stats, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h, ok := f.history[candidateID]
	if !ok || h.len() == 0 {
		return Stats{}, false
	}

	samples := h.ordered()
	prices := make([]float64, len(samples))
	min := samples[0].Price
	max := samples[0].Price
	sum := decimal.Zero
	for i, s := range samples {
		prices[i] = s.Price.InexactFloat64()
		sum = sum.Add(s.Price)
		if s.Price.LessThan(min) {
			min = s.Price
		}
		if s.Price.GreaterThan(max) {
			max = s.Price
		}
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(samples))))

	return Stats{
		Current:    samples[len(samples)-1].Price,
		Mean:       mean,
		Min:        min,
		Max:        max,
		Volatility: coefficientOfVariation(prices),
		Trend:      f.trendLocked(prices),
		Samples:    len(samples),
	}, true
}

// coefficientOfVariation is the sample standard deviation over the mean.
func coefficientOfVariation(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	if mean == 0 {
		return 0
	}
	var m2 float64
	for _, p := range prices {
		d := p - mean
		m2 += d * d
	}
	variance := m2 / float64(len(prices)-1)
	return math.Sqrt(variance) / mean
}

// trendLocked compares the mean of the most recent k samples against the mean
// of the preceding k, with a dead-band to avoid flapping on noise.
func (f *Feed) trendLocked(prices []float64) Trend {
	k := f.cfg.TrendWindow
	if len(prices) < 2*k {
		return TrendStable
	}

	recent := meanOf(prices[len(prices)-k:])
	prior := meanOf(prices[len(prices)-2*k : len(prices)-k])
	if prior == 0 {
		return TrendStable
	}

	diffPct := (recent - prior) / prior * 100
	switch {
	case diffPct > f.cfg.TrendDeadbandPct:
		return TrendUp
	case diffPct < -f.cfg.TrendDeadbandPct:
		return TrendDown
	default:
		return TrendStable
	}
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
