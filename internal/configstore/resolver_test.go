package configstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/storage"
)

type fakeConfigStore struct {
	configs map[string]monitor.Config
	reads   int
	writes  int
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{configs: make(map[string]monitor.Config)}
}

func (f *fakeConfigStore) GetConfig(ctx context.Context, scope string) (*monitor.Config, error) {
	f.reads++
	cfg, ok := f.configs[scope]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &cfg, nil
}

func (f *fakeConfigStore) UpsertConfig(ctx context.Context, cfg *monitor.Config) error {
	f.writes++
	f.configs[cfg.Scope] = *cfg
	return nil
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	store := newFakeConfigStore()
	global := monitor.DefaultConfig()
	global.RiseTriggerPct = 1.25
	store.configs[monitor.ScopeGlobal] = global

	r := New(store, time.Minute, nil, zerolog.Nop())
	cfg, err := r.Resolve(context.Background(), "owner-without-override")
	if err != nil {
		t.Fatalf("missing override must not be an error: %v", err)
	}
	if cfg.RiseTriggerPct != 1.25 {
		t.Fatalf("expected the global config, got trigger %v", cfg.RiseTriggerPct)
	}
}

func TestResolvePrefersOwnerOverride(t *testing.T) {
	store := newFakeConfigStore()
	store.configs[monitor.ScopeGlobal] = monitor.DefaultConfig()
	override := monitor.DefaultConfig()
	override.Scope = "owner-1"
	override.RiseTriggerPct = 2.0
	store.configs["owner-1"] = override

	r := New(store, time.Minute, nil, zerolog.Nop())
	cfg, err := r.Resolve(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.RiseTriggerPct != 2.0 {
		t.Fatalf("expected the owner override, got trigger %v", cfg.RiseTriggerPct)
	}
}

func TestResolveCompiledDefaultsWhenEmpty(t *testing.T) {
	r := New(newFakeConfigStore(), time.Minute, nil, zerolog.Nop())
	cfg, err := r.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("empty store should fall back to defaults: %v", err)
	}
	if cfg.LateralCyclesMin != monitor.DefaultConfig().LateralCyclesMin {
		t.Fatal("expected compiled-in defaults")
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	store := newFakeConfigStore()
	store.configs[monitor.ScopeGlobal] = monitor.DefaultConfig()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := New(store, 30*time.Second, func() time.Time { return now }, zerolog.Nop())

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve(context.Background(), ""); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
	}
	if store.reads != 1 {
		t.Fatalf("expected 1 store read within TTL, got %d", store.reads)
	}

	now = now.Add(31 * time.Second)
	if _, err := r.Resolve(context.Background(), ""); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if store.reads != 2 {
		t.Fatalf("expired entry should re-read, got %d reads", store.reads)
	}
}

func TestPutValidatesAndInvalidates(t *testing.T) {
	store := newFakeConfigStore()
	store.configs[monitor.ScopeGlobal] = monitor.DefaultConfig()
	r := New(store, time.Minute, nil, zerolog.Nop())

	// Prime the cache.
	if _, err := r.Resolve(context.Background(), ""); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	bad := monitor.DefaultConfig()
	bad.LateralCyclesMin = 0
	err := r.Put(context.Background(), bad)
	var verr *monitor.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("invalid config must be rejected with the field named, got %v", err)
	}
	if store.writes != 0 {
		t.Fatal("rejected config must not reach the store")
	}

	good := monitor.DefaultConfig()
	good.RiseTriggerPct = 3.0
	if err := r.Put(context.Background(), good); err != nil {
		t.Fatalf("valid config should write: %v", err)
	}

	cfg, err := r.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.RiseTriggerPct != 3.0 {
		t.Fatal("write should invalidate the cached entry")
	}
}

func TestNegativeLookupIsCached(t *testing.T) {
	store := newFakeConfigStore()
	store.configs[monitor.ScopeGlobal] = monitor.DefaultConfig()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := New(store, time.Minute, func() time.Time { return now }, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "owner-1"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
	}
	// One read for the missing override, one for global.
	if store.reads != 2 {
		t.Fatalf("expected 2 reads with negative caching, got %d", store.reads)
	}
}
