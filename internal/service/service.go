package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"entry-confirm-alerts/internal/metrics"
	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/pricefeed"
	"entry-confirm-alerts/internal/scheduler"
	"entry-confirm-alerts/internal/storage"
)

var (
	// ErrAlreadyTerminal rejects a manual cancel that lost the race
	// against a tick; the terminal outcome is never overwritten.
	ErrAlreadyTerminal = errors.New("alert is already terminal")
	// ErrForbidden rejects operations on a foreign-owned alert.
	ErrForbidden = errors.New("alert belongs to another owner")
	// ErrCooldownActive rejects alert creation inside the
	// post-execution cooldown window for the same symbol/account/side.
	ErrCooldownActive = errors.New("cooldown after execution still active")
)

// ConfigResolver resolves the effective threshold set for an owner.
type ConfigResolver interface {
	Resolve(ctx context.Context, ownerID string) (monitor.Config, error)
}

// JobDispatcher hands fired alerts to the execution queue.
type JobDispatcher interface {
	Dispatch(ctx context.Context, alert *monitor.Alert) error
	ResubmitPending(ctx context.Context, mode monitor.TradeMode) error
}

// Options bound the service's external calls.
type Options struct {
	Workers      int
	FetchTimeout time.Duration
}

// Service drives confirmation monitoring for one trade mode. REAL and
// SIMULATION each get their own instance, schedule, and worker budget,
// so load or failure in one mode cannot starve the other.
type Service struct {
	mode       monitor.TradeMode
	sched      *scheduler.Scheduler
	alerts     storage.AlertStore
	configs    ConfigResolver
	prices     pricefeed.Fetcher
	dispatcher JobDispatcher
	logger     zerolog.Logger

	workers      int
	fetchTimeout time.Duration
	now          func() time.Time
}

// New constructs the monitoring service for one trade mode.
func New(mode monitor.TradeMode, sched *scheduler.Scheduler, alerts storage.AlertStore, configs ConfigResolver, prices pricefeed.Fetcher, dispatcher JobDispatcher, opts Options, logger zerolog.Logger) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}

	return &Service{
		mode:         mode,
		sched:        sched,
		alerts:       alerts,
		configs:      configs,
		prices:       prices,
		dispatcher:   dispatcher,
		logger:       logger.With().Str("component", "service").Str("trade_mode", string(mode)).Logger(),
		workers:      workers,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// Run begins the periodic monitoring loop.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, s.Tick)
}

// Tick snapshots every open alert for this mode and processes each
// independently over a bounded worker pool. One alert's failure never
// blocks or delays the others.
func (s *Service) Tick(ctx context.Context, at time.Time) error {
	cfg, err := s.configs.Resolve(ctx, "")
	if err != nil {
		return fmt.Errorf("resolve global config: %w", err)
	}
	if !cfg.Enabled {
		s.logger.Debug().Msg("monitoring disabled, skipping tick")
		return nil
	}

	metrics.TicksTotal.WithLabelValues(string(s.mode)).Inc()

	if s.dispatcher != nil {
		if err := s.dispatcher.ResubmitPending(ctx, s.mode); err != nil {
			s.logger.Error().Err(err).Msg("pending job resubmission failed")
		}
	}

	open, err := s.alerts.ListOpenAlerts(ctx, s.mode)
	if err != nil {
		return fmt.Errorf("list open alerts: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range open {
		alert := open[i]
		g.Go(func() error {
			s.processAlert(gctx, &alert, at)
			return nil
		})
	}
	return g.Wait()
}

// processAlert runs one alert's tick end to end: fetch, detect,
// persist, dispatch. Failures are logged and deferred to the next
// cadence; nothing here may take down the sweep.
func (s *Service) processAlert(ctx context.Context, alert *monitor.Alert, at time.Time) {
	logger := s.logger.With().Str("alert_id", alert.ID).Str("symbol", alert.Symbol).Logger()
	metrics.AlertsProcessed.WithLabelValues(string(s.mode)).Inc()

	cfg, err := s.configs.Resolve(ctx, alert.OwnerID)
	if err != nil {
		logger.Error().Err(err).Msg("config resolution failed, deferring alert")
		return
	}
	thresholds := cfg.ThresholdsFor(alert.Side)

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	quote, err := s.prices.GetPrice(fetchCtx, alert.Venue, alert.Symbol)
	cancel()
	if err != nil {
		// Counters and extremes stay untouched; a missing sample is
		// neither a band breach nor progress.
		metrics.FetchErrors.WithLabelValues(alert.Venue).Inc()
		logger.Warn().Err(err).Msg("price fetch failed, retrying next cadence")
		return
	}
	if !quote.Last.IsPositive() {
		// A zero or negative quote is venue garbage, not a sample; the
		// detector divides by the anchor and must never see it.
		metrics.FetchErrors.WithLabelValues(alert.Venue).Inc()
		logger.Warn().Str("price", quote.Last.String()).Msg("non-positive quote discarded")
		return
	}

	decision := monitor.Evaluate(alert, monitor.Sample{Price: quote.Last, At: at}, thresholds)
	decision.Apply(alert, at)

	if err := s.alerts.UpdateAlert(ctx, alert); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			// A manual cancel applied first; its terminal state wins
			// and this tick's result is dropped.
			logger.Debug().Msg("concurrent update won the race, dropping tick result")
			return
		}
		logger.Error().Err(err).Msg("alert update failed")
		return
	}

	switch {
	case decision.Fire:
		metrics.AlertsFired.WithLabelValues(string(s.mode), string(alert.Side)).Inc()
		logger.Info().
			Str("execution_price", alert.ExecutionPrice.String()).
			Msg("breakout confirmed, alert executed")
		if s.dispatcher != nil {
			if err := s.dispatcher.Dispatch(ctx, alert); err != nil {
				logger.Error().Err(err).Msg("dispatch incomplete, pending jobs will retry")
			}
		}
	case decision.State == monitor.StateCancelled:
		metrics.AlertsCancelled.WithLabelValues(string(s.mode), string(alert.ExitReason)).Inc()
		logger.Info().Str("reason", string(alert.ExitReason)).Msg("alert cancelled")
	case decision.State == monitor.StateExpired:
		metrics.AlertsExpired.WithLabelValues(string(s.mode)).Inc()
		logger.Info().Msg("alert expired without confirmation")
	}
}

// CreateParams describe an incoming signal requesting delayed
// confirmation.
type CreateParams struct {
	SourceID   string
	OwnerID    string
	AccountIDs []string
	Symbol     string
	Venue      string
	Side       monitor.Side
	TradeMode  monitor.TradeMode
}

// CreateAlert turns a validated signal into a MONITORING alert, unless
// the post-execution cooldown for the same symbol/account/side is still
// open. The anchor price is sampled at creation.
func (s *Service) CreateAlert(ctx context.Context, params CreateParams) (*monitor.Alert, error) {
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if !params.Side.Valid() {
		return nil, fmt.Errorf("invalid side %q", params.Side)
	}
	if !params.TradeMode.Valid() {
		return nil, fmt.Errorf("invalid trade mode %q", params.TradeMode)
	}
	if len(params.AccountIDs) == 0 {
		return nil, fmt.Errorf("at least one bound account is required")
	}

	cfg, err := s.configs.Resolve(ctx, params.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	thresholds := cfg.ThresholdsFor(params.Side)

	now := s.now().UTC()
	if thresholds.Cooldown > 0 {
		since := now.Add(-thresholds.Cooldown)
		hot, err := s.alerts.RecentExecutionExists(ctx, params.Symbol, params.Side, params.TradeMode, params.AccountIDs, since)
		if err != nil {
			return nil, fmt.Errorf("cooldown check: %w", err)
		}
		if hot {
			return nil, ErrCooldownActive
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	quote, err := s.prices.GetPrice(fetchCtx, params.Venue, params.Symbol)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("sample anchor price: %w", err)
	}
	if !quote.Last.IsPositive() {
		return nil, fmt.Errorf("venue %s returned non-positive price %s for %s", params.Venue, quote.Last, params.Symbol)
	}

	alert := &monitor.Alert{
		ID:             uuid.NewString(),
		SourceID:       params.SourceID,
		OwnerID:        params.OwnerID,
		AccountIDs:     params.AccountIDs,
		Symbol:         params.Symbol,
		Venue:          params.Venue,
		Side:           params.Side,
		TradeMode:      params.TradeMode,
		State:          monitor.StateMonitoring,
		SubStatus:      monitor.PhaseLateral,
		AnchorPrice:    quote.Last,
		PriceMinimum:   quote.Last,
		PriceMaximum:   quote.Last,
		CurrentPrice:   quote.Last,
		ExecutedJobIDs: []string{},
		StartedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	if err := s.alerts.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}

	s.logger.Info().
		Str("alert_id", alert.ID).
		Str("symbol", alert.Symbol).
		Str("side", string(alert.Side)).
		Str("anchor_price", alert.AnchorPrice.String()).
		Msg("alert created, monitoring for confirmation")
	return alert, nil
}

// Cancel manually cancels an open alert. The state re-check and the
// terminal write are one conditional statement in the store, so a tick
// that fired concurrently wins and the cancel is rejected.
func (s *Service) Cancel(ctx context.Context, id, ownerID, reason string) error {
	alert, err := s.alerts.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != "" && alert.OwnerID != ownerID {
		return ErrForbidden
	}
	if !alert.Open() {
		return ErrAlreadyTerminal
	}

	details := reason
	if details == "" {
		details = "cancelled by operator"
	}

	cancelled, err := s.alerts.CancelAlert(ctx, id, details, s.now().UTC())
	if err != nil {
		return err
	}
	if !cancelled {
		// Lost the race between the check above and the write.
		return ErrAlreadyTerminal
	}

	metrics.AlertsCancelled.WithLabelValues(string(alert.TradeMode), string(monitor.ExitManual)).Inc()
	s.logger.Info().Str("alert_id", id).Str("reason", details).Msg("alert cancelled manually")
	return nil
}
