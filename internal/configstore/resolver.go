package configstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/storage"
)

// Resolver resolves the effective threshold set for an owner: owner
// override, falling back to the stored global default, falling back to
// the compiled-in defaults when no global row exists yet. Reads go
// through a short-TTL cache invalidated on write.
type Resolver struct {
	store  storage.ConfigStore
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	cfg       monitor.Config
	missing   bool
	fetchedAt time.Time
}

// New constructs a resolver. A nil clock uses the wall clock.
func New(store storage.ConfigStore, ttl time.Duration, now func() time.Time, logger zerolog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Resolver{
		store:   store,
		ttl:     ttl,
		now:     now,
		logger:  logger.With().Str("component", "configstore").Logger(),
		entries: make(map[string]cacheEntry),
	}
}

// Resolve returns the effective config for an owner. A missing owner
// override is the normal case, never an error.
func (r *Resolver) Resolve(ctx context.Context, ownerID string) (monitor.Config, error) {
	if ownerID != "" && ownerID != monitor.ScopeGlobal {
		cfg, found, err := r.lookup(ctx, ownerID)
		if err != nil {
			return monitor.Config{}, err
		}
		if found {
			return cfg, nil
		}
	}

	cfg, found, err := r.lookup(ctx, monitor.ScopeGlobal)
	if err != nil {
		return monitor.Config{}, err
	}
	if found {
		return cfg, nil
	}
	return monitor.DefaultConfig(), nil
}

// Put validates and writes a config, then invalidates its cache entry.
// Invalid values are rejected with the offending field named; nothing
// is clamped.
func (r *Resolver) Put(ctx context.Context, cfg monitor.Config) error {
	if cfg.Scope == "" {
		cfg.Scope = monitor.ScopeGlobal
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := r.store.UpsertConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("write config %s: %w", cfg.Scope, err)
	}
	r.Invalidate(cfg.Scope)
	r.logger.Info().Str("scope", cfg.Scope).Msg("config updated")
	return nil
}

// Invalidate drops a scope's cached entry.
func (r *Resolver) Invalidate(scope string) {
	r.mu.Lock()
	delete(r.entries, scope)
	r.mu.Unlock()
}

func (r *Resolver) lookup(ctx context.Context, scope string) (monitor.Config, bool, error) {
	r.mu.Lock()
	if entry, ok := r.entries[scope]; ok && r.now().Sub(entry.fetchedAt) < r.ttl {
		r.mu.Unlock()
		return entry.cfg, !entry.missing, nil
	}
	r.mu.Unlock()

	cfg, err := r.store.GetConfig(ctx, scope)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Negative entries are cached too; absent owner overrides
			// are the common case and should not hit the store every
			// tick.
			r.remember(scope, monitor.Config{}, true)
			return monitor.Config{}, false, nil
		}
		return monitor.Config{}, false, fmt.Errorf("read config %s: %w", scope, err)
	}

	r.remember(scope, *cfg, false)
	return *cfg, true, nil
}

func (r *Resolver) remember(scope string, cfg monitor.Config, missing bool) {
	r.mu.Lock()
	r.entries[scope] = cacheEntry{cfg: cfg, missing: missing, fetchedAt: r.now()}
	r.mu.Unlock()
}
