package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/pricefeed"
	"entry-confirm-alerts/internal/storage"
)

var tickAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeAlerts struct {
	storage.AlertStore
	mu       sync.Mutex
	alerts   map[string]*monitor.Alert
	updates  int
	conflict bool
	recent   bool
}

func newFakeAlerts(alerts ...*monitor.Alert) *fakeAlerts {
	f := &fakeAlerts{alerts: make(map[string]*monitor.Alert)}
	for _, a := range alerts {
		f.alerts[a.ID] = a
	}
	return f
}

func (f *fakeAlerts) InsertAlert(ctx context.Context, a *monitor.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts[a.ID] = a
	return nil
}

func (f *fakeAlerts) GetAlert(ctx context.Context, id string) (*monitor.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAlerts) ListOpenAlerts(ctx context.Context, mode monitor.TradeMode) ([]monitor.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	open := make([]monitor.Alert, 0)
	for _, a := range f.alerts {
		if a.Open() && a.TradeMode == mode {
			open = append(open, *a)
		}
	}
	return open, nil
}

func (f *fakeAlerts) UpdateAlert(ctx context.Context, a *monitor.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict {
		return storage.ErrVersionConflict
	}
	f.updates++
	stored := *a
	stored.Version = a.Version + 1
	f.alerts[a.ID] = &stored
	a.Version++
	return nil
}

func (f *fakeAlerts) CancelAlert(ctx context.Context, id, details string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok || !a.Open() {
		return false, nil
	}
	a.State = monitor.StateCancelled
	a.ExitReason = monitor.ExitManual
	a.ExitDetails = details
	ended := now
	a.EndedAt = &ended
	return true, nil
}

func (f *fakeAlerts) RecentExecutionExists(ctx context.Context, symbol string, side monitor.Side, mode monitor.TradeMode, accountIDs []string, since time.Time) (bool, error) {
	return f.recent, nil
}

type staticConfigs struct {
	cfg monitor.Config
}

func (c staticConfigs) Resolve(ctx context.Context, ownerID string) (monitor.Config, error) {
	return c.cfg, nil
}

type scriptedPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	calls  int
}

func (p *scriptedPrices) GetPrice(ctx context.Context, venue, symbol string) (pricefeed.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err, ok := p.errs[symbol]; ok {
		return pricefeed.Quote{}, err
	}
	return pricefeed.Quote{Last: p.prices[symbol], Timestamp: tickAt}, nil
}

type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []string
	resubmits  int
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, alert *monitor.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, alert.ID)
	return nil
}

func (d *recordingDispatcher) ResubmitPending(ctx context.Context, mode monitor.TradeMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resubmits++
	return nil
}

func armedAlert(id, symbol string) *monitor.Alert {
	price := decimal.NewFromInt(100)
	return &monitor.Alert{
		ID:           id,
		OwnerID:      "owner-1",
		AccountIDs:   []string{"acct-1"},
		Symbol:       symbol,
		Venue:        "binance",
		Side:         monitor.SideBuy,
		TradeMode:    monitor.ModeSimulation,
		State:        monitor.StateMonitoring,
		SubStatus:    monitor.PhaseArmed,
		AnchorPrice:  price,
		PriceMinimum: decimal.NewFromFloat(99.8),
		PriceMaximum: decimal.NewFromFloat(100.2),
		CurrentPrice: price,
		TriggerPrice: decimal.NewFromFloat(99.8),
		StartedAt:    tickAt.Add(-10 * time.Minute),
		Version:      1,
	}
}

func newService(alerts *fakeAlerts, prices *scriptedPrices, d *recordingDispatcher) *Service {
	cfg := monitor.DefaultConfig()
	cfg.RiseCyclesMin = 1
	return New(monitor.ModeSimulation, nil, alerts, staticConfigs{cfg: cfg}, prices, d, Options{Workers: 4}, zerolog.Nop())
}

func TestTickFiresAndDispatchesOnce(t *testing.T) {
	alert := armedAlert("alert-1", "SOLUSDT")
	alerts := newFakeAlerts(alert)
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.NewFromFloat(100.7)}}
	dispatcher := &recordingDispatcher{}
	svc := newService(alerts, prices, dispatcher)

	if err := svc.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	stored, _ := alerts.GetAlert(context.Background(), "alert-1")
	if stored.State != monitor.StateExecuted {
		t.Fatalf("expected EXECUTED, got %s", stored.State)
	}
	if !stored.ExecutionPrice.Equal(decimal.NewFromFloat(100.7)) {
		t.Fatalf("expected execution price 100.7, got %s", stored.ExecutionPrice)
	}
	if len(dispatcher.dispatched) != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", len(dispatcher.dispatched))
	}
	if dispatcher.resubmits != 1 {
		t.Fatalf("tick should sweep pending jobs once, got %d", dispatcher.resubmits)
	}
}

func TestTickFetchFailureLeavesAlertUntouched(t *testing.T) {
	alert := armedAlert("alert-1", "SOLUSDT")
	alert.ConfirmCycles = 3
	alerts := newFakeAlerts(alert)
	prices := &scriptedPrices{errs: map[string]error{"SOLUSDT": errors.New("venue down")}}
	svc := newService(alerts, prices, &recordingDispatcher{})

	if err := svc.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("tick must not fail on a fetch error: %v", err)
	}

	if alerts.updates != 0 {
		t.Fatal("fetch failure must not persist any state change")
	}
	stored, _ := alerts.GetAlert(context.Background(), "alert-1")
	if stored.ConfirmCycles != 3 {
		t.Fatalf("counters must survive a fetch failure, got %d", stored.ConfirmCycles)
	}
}

func TestTickDiscardsNonPositiveQuote(t *testing.T) {
	alert := armedAlert("alert-1", "SOLUSDT")
	alert.ConfirmCycles = 1
	alerts := newFakeAlerts(alert)
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.Zero}}
	dispatcher := &recordingDispatcher{}
	svc := newService(alerts, prices, dispatcher)

	if err := svc.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if alerts.updates != 0 {
		t.Fatal("a zero quote must not reach the detector or persist anything")
	}
	stored, _ := alerts.GetAlert(context.Background(), "alert-1")
	if stored.ConfirmCycles != 1 {
		t.Fatalf("counters must survive a garbage quote, got %d", stored.ConfirmCycles)
	}
}

func TestTickIsolatesFailingAlert(t *testing.T) {
	bad := armedAlert("alert-bad", "BADUSDT")
	good := armedAlert("alert-good", "SOLUSDT")
	alerts := newFakeAlerts(bad, good)
	prices := &scriptedPrices{
		prices: map[string]decimal.Decimal{"SOLUSDT": decimal.NewFromFloat(100.7)},
		errs:   map[string]error{"BADUSDT": errors.New("venue down")},
	}
	dispatcher := &recordingDispatcher{}
	svc := newService(alerts, prices, dispatcher)

	if err := svc.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	stored, _ := alerts.GetAlert(context.Background(), "alert-good")
	if stored.State != monitor.StateExecuted {
		t.Fatalf("healthy alert must progress despite a failing sibling, got %s", stored.State)
	}
}

func TestTickSkipsWhenDisabled(t *testing.T) {
	alert := armedAlert("alert-1", "SOLUSDT")
	alerts := newFakeAlerts(alert)
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.NewFromFloat(100.7)}}
	cfg := monitor.DefaultConfig()
	cfg.Enabled = false
	svc := New(monitor.ModeSimulation, nil, alerts, staticConfigs{cfg: cfg}, prices, &recordingDispatcher{}, Options{}, zerolog.Nop())

	if err := svc.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if prices.calls != 0 {
		t.Fatal("disabled monitoring must not fetch prices")
	}
}

func TestTickDropsResultOnVersionConflict(t *testing.T) {
	alert := armedAlert("alert-1", "SOLUSDT")
	alerts := newFakeAlerts(alert)
	alerts.conflict = true
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.NewFromFloat(100.7)}}
	dispatcher := &recordingDispatcher{}
	svc := newService(alerts, prices, dispatcher)

	if err := svc.Tick(context.Background(), tickAt); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Fatal("a lost update race must never dispatch")
	}
}

func TestCancelRejectsTerminalAlert(t *testing.T) {
	alert := armedAlert("alert-1", "SOLUSDT")
	alert.State = monitor.StateExecuted
	alerts := newFakeAlerts(alert)
	svc := newService(alerts, &scriptedPrices{}, &recordingDispatcher{})

	err := svc.Cancel(context.Background(), "alert-1", "owner-1", "changed my mind")
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestCancelRejectsForeignOwner(t *testing.T) {
	alerts := newFakeAlerts(armedAlert("alert-1", "SOLUSDT"))
	svc := newService(alerts, &scriptedPrices{}, &recordingDispatcher{})

	err := svc.Cancel(context.Background(), "alert-1", "owner-2", "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancelUnknownAlert(t *testing.T) {
	svc := newService(newFakeAlerts(), &scriptedPrices{}, &recordingDispatcher{})

	err := svc.Cancel(context.Background(), "missing", "owner-1", "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelSucceedsOnOpenAlert(t *testing.T) {
	alerts := newFakeAlerts(armedAlert("alert-1", "SOLUSDT"))
	svc := newService(alerts, &scriptedPrices{}, &recordingDispatcher{})

	if err := svc.Cancel(context.Background(), "alert-1", "owner-1", "operator request"); err != nil {
		t.Fatalf("cancel should succeed: %v", err)
	}
	stored, _ := alerts.GetAlert(context.Background(), "alert-1")
	if stored.State != monitor.StateCancelled || stored.ExitReason != monitor.ExitManual {
		t.Fatalf("expected CANCELLED/MANUAL, got %s/%s", stored.State, stored.ExitReason)
	}
}

func TestCreateAlertHonoursCooldown(t *testing.T) {
	alerts := newFakeAlerts()
	alerts.recent = true
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.NewFromInt(100)}}
	svc := newService(alerts, prices, &recordingDispatcher{})

	_, err := svc.CreateAlert(context.Background(), CreateParams{
		OwnerID:    "owner-1",
		AccountIDs: []string{"acct-1"},
		Symbol:     "SOLUSDT",
		Venue:      "binance",
		Side:       monitor.SideBuy,
		TradeMode:  monitor.ModeSimulation,
	})
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
}

func TestCreateAlertRejectsNonPositiveQuote(t *testing.T) {
	alerts := newFakeAlerts()
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.Zero}}
	svc := newService(alerts, prices, &recordingDispatcher{})

	_, err := svc.CreateAlert(context.Background(), CreateParams{
		OwnerID:    "owner-1",
		AccountIDs: []string{"acct-1"},
		Symbol:     "SOLUSDT",
		Venue:      "binance",
		Side:       monitor.SideBuy,
		TradeMode:  monitor.ModeSimulation,
	})
	if err == nil {
		t.Fatal("a zero quote must not become an anchor price")
	}
}

func TestCreateAlertAnchorsAtCurrentPrice(t *testing.T) {
	alerts := newFakeAlerts()
	prices := &scriptedPrices{prices: map[string]decimal.Decimal{"SOLUSDT": decimal.NewFromFloat(142.37)}}
	svc := newService(alerts, prices, &recordingDispatcher{})

	alert, err := svc.CreateAlert(context.Background(), CreateParams{
		OwnerID:    "owner-1",
		AccountIDs: []string{"acct-1"},
		Symbol:     "SOLUSDT",
		Venue:      "binance",
		Side:       monitor.SideBuy,
		TradeMode:  monitor.ModeSimulation,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if alert.State != monitor.StateMonitoring || alert.SubStatus != monitor.PhaseLateral {
		t.Fatalf("new alert should start MONITORING/LATERAL, got %s/%s", alert.State, alert.SubStatus)
	}
	anchor := decimal.NewFromFloat(142.37)
	if !alert.AnchorPrice.Equal(anchor) || !alert.PriceMinimum.Equal(anchor) || !alert.PriceMaximum.Equal(anchor) {
		t.Fatal("anchor and extremes should start at the creation sample")
	}
	if alert.ExecutedJobIDs == nil {
		t.Fatal("job id list must start empty, not nil; nil binds as SQL NULL on insert")
	}
}
