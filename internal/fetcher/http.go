package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"agent-cost-governor/internal/catalog"
)

// HTTPOptions parameterise the HTTP quote source.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// HTTPSource pulls per-candidate quotes from a pricing API. A candidate may
// override the endpoint with its own quote URL; otherwise the source queries
// BaseURL/quote?candidate=<id>.
type HTTPSource struct {
	opts    HTTPOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPSource constructs an HTTP quote source.
func NewHTTPSource(opts HTTPOptions, logger zerolog.Logger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With().Str("component", "http_price_source").Logger(),
	}
}

type quoteResponse struct {
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// FetchPrice retrieves the current unit cost for a candidate.
func (s *HTTPSource) FetchPrice(ctx context.Context, candidate catalog.Candidate) (decimal.Decimal, error) {
	endpoint := candidate.QuoteURL
	if endpoint == "" {
		if s.baseURL == "" {
			return decimal.Decimal{}, errors.New("no quote endpoint configured")
		}
		endpoint = fmt.Sprintf("%s/quote?candidate=%s", s.baseURL, url.QueryEscape(candidate.ID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create quote request: %w", err)
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Decimal{}, fmt.Errorf("quote endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode quote response: %w", err)
	}

	price, err := decimal.NewFromString(quote.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse quoted price %q: %w", quote.Price, err)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("quoted price is negative: %s", price)
	}

	s.logger.Debug().Str("candidate", candidate.ID).Str("price", price.String()).Msg("quote fetched")
	return price, nil
}

var _ PriceSource = (*HTTPSource)(nil)
