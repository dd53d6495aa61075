package pricefeed

import (
	"context"
	"sync"
	"time"
)

// Cache is a short-TTL read cache in front of a Fetcher, shared by all
// alerts on the same venue/symbol within a tick. The TTL must stay
// below the check interval so no two consecutive ticks see the same
// sample. The clock is injected so expiry is testable.
type Cache struct {
	next Fetcher
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	quote     Quote
	fetchedAt time.Time
}

// NewCache wraps a fetcher with a TTL cache.
func NewCache(next Fetcher, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		next:    next,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// GetPrice returns a cached quote while fresh, otherwise fetches and
// caches. Fetch failures are never cached.
func (c *Cache) GetPrice(ctx context.Context, venue, symbol string) (Quote, error) {
	key := venue + ":" + symbol

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.quote, nil
	}
	c.mu.Unlock()

	quote, err := c.next.GetPrice(ctx, venue, symbol)
	if err != nil {
		return Quote{}, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{quote: quote, fetchedAt: c.now()}
	c.mu.Unlock()
	return quote, nil
}

// Invalidate drops any cached quote for the venue/symbol pair.
func (c *Cache) Invalidate(venue, symbol string) {
	c.mu.Lock()
	delete(c.entries, venue+":"+symbol)
	c.mu.Unlock()
}

var _ Fetcher = (*Cache)(nil)
