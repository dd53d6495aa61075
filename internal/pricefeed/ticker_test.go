package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestTicker(baseURL string) *Ticker {
	return NewTicker(TickerOptions{
		VenueURLs: map[string]string{"binance": baseURL},
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())
}

func TestGetPriceUnknownVenue(t *testing.T) {
	ticker := NewTicker(TickerOptions{}, noopLogger())
	if _, err := ticker.GetPrice(context.Background(), "nowhere", "SOLUSDT"); err == nil {
		t.Fatal("unknown venue should error")
	}
}

func TestGetPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "SOLUSDT" {
			t.Fatalf("expected symbol query SOLUSDT, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": "SOLUSDT", "price": "142.37"})
	}))
	defer srv.Close()

	quote, err := newTestTicker(srv.URL).GetPrice(context.Background(), "binance", "SOLUSDT")
	if err != nil {
		t.Fatalf("successful response should not error: %v", err)
	}
	if !quote.Last.Equal(decimal.NewFromFloat(142.37)) {
		t.Fatalf("expected 142.37, got %s", quote.Last)
	}
	if quote.Timestamp.IsZero() {
		t.Fatal("quote timestamp should be set")
	}
}

func TestGetPriceUnknownSymbolIsNoPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": -1121, "msg": "Invalid symbol."})
	}))
	defer srv.Close()

	_, err := newTestTicker(srv.URL).GetPrice(context.Background(), "binance", "NOPEUSDT")
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("unknown symbol should map to ErrNoPrice, got %v", err)
	}
}

func TestGetPriceServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"msg": "upstream down"})
	}))
	defer srv.Close()

	_, err := newTestTicker(srv.URL).GetPrice(context.Background(), "binance", "SOLUSDT")
	if err == nil {
		t.Fatal("HTTP 502 should error")
	}
	if errors.Is(err, ErrNoPrice) {
		t.Fatal("transport failure must stay distinct from no-data")
	}
}
