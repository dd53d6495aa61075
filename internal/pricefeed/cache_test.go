package pricefeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type countingFetcher struct {
	calls int
	quote Quote
	err   error
}

func (f *countingFetcher) GetPrice(ctx context.Context, venue, symbol string) (Quote, error) {
	f.calls++
	if f.err != nil {
		return Quote{}, f.err
	}
	return f.quote, nil
}

func TestCacheServesFreshEntries(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	inner := &countingFetcher{quote: Quote{Last: decimal.NewFromInt(100), Timestamp: now}}
	cache := NewCache(inner, 30*time.Second, clock)

	for i := 0; i < 3; i++ {
		if _, err := cache.GetPrice(context.Background(), "binance", "SOLUSDT"); err != nil {
			t.Fatalf("cached fetch should not error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("fresh entries should hit the inner fetcher once, got %d calls", inner.calls)
	}
}

func TestCacheExpiresByTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	inner := &countingFetcher{quote: Quote{Last: decimal.NewFromInt(100)}}
	cache := NewCache(inner, 30*time.Second, func() time.Time { return clock() })

	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")
	now = now.Add(31 * time.Second)
	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")

	if inner.calls != 2 {
		t.Fatalf("expired entry should refetch, got %d calls", inner.calls)
	}
}

func TestCacheKeysByVenueAndSymbol(t *testing.T) {
	inner := &countingFetcher{quote: Quote{Last: decimal.NewFromInt(100)}}
	cache := NewCache(inner, time.Minute, nil)

	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")
	_, _ = cache.GetPrice(context.Background(), "binance", "ETHUSDT")
	_, _ = cache.GetPrice(context.Background(), "kraken", "SOLUSDT")

	if inner.calls != 3 {
		t.Fatalf("distinct venue/symbol pairs must not share entries, got %d calls", inner.calls)
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	inner := &countingFetcher{err: errors.New("venue down")}
	cache := NewCache(inner, time.Minute, nil)

	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")
	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")

	if inner.calls != 2 {
		t.Fatalf("failures must not be cached, got %d calls", inner.calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	inner := &countingFetcher{quote: Quote{Last: decimal.NewFromInt(100)}}
	cache := NewCache(inner, time.Minute, nil)

	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")
	cache.Invalidate("binance", "SOLUSDT")
	_, _ = cache.GetPrice(context.Background(), "binance", "SOLUSDT")

	if inner.calls != 2 {
		t.Fatalf("invalidated entry should refetch, got %d calls", inner.calls)
	}
}
