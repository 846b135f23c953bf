package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"agent-cost-governor/internal/storage"
)

// ExportOptions configure the export command.
type ExportOptions struct {
	CandidateID string
	CSVPath     string
	PNGPath     string
	From        *time.Time
	To          *time.Time
	MaxPoints   int
}

// rollingMeanWindow is the sample count used for the smoothed series.
const rollingMeanWindow = 10

// Export renders a candidate's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CandidateID == "" {
		return errors.New("--candidate is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, opts.CandidateID, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Str("candidate", opts.CandidateID).Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().
		Str("candidate", opts.CandidateID).
		Int("total", len(samples)).
		Int("exported", len(downsampled)).
		Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, opts.CandidateID, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.PriceSampleRecord, max int) []storage.PriceSampleRecord {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.PriceSampleRecord, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.PriceSampleRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "candidate_id", "price", "rolling_mean"}
	if err := writer.Write(header); err != nil {
		return err
	}

	means := rollingMeans(samples, rollingMeanWindow)
	for i, sample := range samples {
		record := []string{
			sample.ObservedAt.UTC().Format(time.RFC3339),
			sample.CandidateID,
			sample.Price.String(),
			means[i].String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path, candidateID string, samples []storage.PriceSampleRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	prices := make([]float64, len(samples))
	smoothed := make([]float64, len(samples))

	means := rollingMeans(samples, rollingMeanWindow)
	for i, sample := range samples {
		x[i] = sample.ObservedAt
		prices[i] = sample.Price.InexactFloat64()
		smoothed[i] = means[i].InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.5f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Unit cost (" + candidateID + ")",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: prices,
			},
			chart.TimeSeries{
				Name:    "Rolling mean",
				XValues: x,
				YValues: smoothed,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// rollingMeans computes a trailing mean over at most window samples.
func rollingMeans(samples []storage.PriceSampleRecord, window int) []decimal.Decimal {
	means := make([]decimal.Decimal, len(samples))
	sum := decimal.Zero
	for i, sample := range samples {
		sum = sum.Add(sample.Price)
		if i >= window {
			sum = sum.Sub(samples[i-window].Price)
		}
		count := i + 1
		if count > window {
			count = window
		}
		means[i] = sum.Div(decimal.NewFromInt(int64(count)))
	}
	return means
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
