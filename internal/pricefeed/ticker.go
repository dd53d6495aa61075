package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const tickerPath = "/api/v3/ticker/price"

// TickerOptions parameterise the HTTP ticker fetcher.
type TickerOptions struct {
	// VenueURLs maps a venue name to its API base URL.
	VenueURLs map[string]string
	Timeout   time.Duration
	UserAgent string
}

// Ticker fetches spot prices from exchange ticker endpoints.
type Ticker struct {
	opts   TickerOptions
	logger zerolog.Logger
	client *http.Client
}

// NewTicker constructs an HTTP ticker fetcher.
func NewTicker(opts TickerOptions, logger zerolog.Logger) *Ticker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Ticker{
		opts:   opts,
		logger: logger.With().Str("component", "ticker_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// GetPrice retrieves the current last price for a symbol on a venue.
func (t *Ticker) GetPrice(ctx context.Context, venue, symbol string) (Quote, error) {
	base, ok := t.opts.VenueURLs[venue]
	if !ok || base == "" {
		return Quote{}, fmt.Errorf("no base url configured for venue %q", venue)
	}

	endpoint := strings.TrimRight(base, "/") + tickerPath + "?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(t.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch ticker: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("read ticker response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		// Venues answer 400/404 for unknown symbols; that is "no
		// data", not a transport failure.
		return Quote{}, fmt.Errorf("%w: %s on %s", ErrNoPrice, symbol, venue)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, parseHTTPError(resp.StatusCode, payload)
	}

	var ticker tickerResponse
	if err := json.Unmarshal(payload, &ticker); err != nil {
		return Quote{}, fmt.Errorf("decode ticker response: %w", err)
	}
	if ticker.Price == "" {
		return Quote{}, fmt.Errorf("%w: %s on %s", ErrNoPrice, symbol, venue)
	}

	last, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("parse ticker price: %w", err)
	}

	return Quote{Last: last, Timestamp: time.Now().UTC()}, nil
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("ticker api error (%d): %s", status, apiErr.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("ticker api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("ticker api error (%d)", status)
}

var _ Fetcher = (*Ticker)(nil)
