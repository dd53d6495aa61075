package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"entry-confirm-alerts/internal/metrics"
	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/queue"
	"entry-confirm-alerts/internal/storage"
)

// JobKey derives the deterministic idempotency key for an
// (alert, account) pair. Same inputs, same key, always.
func JobKey(alertID, accountID string) string {
	return alertID + ":" + accountID
}

// Dispatcher turns one EXECUTED transition into exactly one queue job
// per bound account. The claim (Postgres unique key) happens before the
// queue submission, so retries and duplicate invocations can never
// double-submit; a claim whose submission failed is retried by
// ResubmitPending without re-running the detector.
type Dispatcher struct {
	alerts storage.AlertStore
	jobs   storage.JobStore
	queue  queue.Queue
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a dispatcher.
func New(alerts storage.AlertStore, jobs storage.JobStore, q queue.Queue, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		alerts: alerts,
		jobs:   jobs,
		queue:  q,
		logger: logger.With().Str("component", "dispatcher").Logger(),
		now:    time.Now,
	}
}

// Dispatch submits one job per bound account for a fired alert. Claims
// that fail queue submission are left pending and reported as a single
// error; the trigger decision itself is already persisted and final.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *monitor.Alert) error {
	if alert.State != monitor.StateExecuted {
		return fmt.Errorf("dispatch: alert %s is %s, not EXECUTED", alert.ID, alert.State)
	}

	var failed []string
	for _, accountID := range alert.AccountIDs {
		key := JobKey(alert.ID, accountID)

		claimed, err := d.jobs.ClaimJob(ctx, storage.ExecutionJob{
			JobKey:    key,
			AlertID:   alert.ID,
			AccountID: accountID,
			TradeMode: alert.TradeMode,
			CreatedAt: d.now().UTC(),
		})
		if err != nil {
			failed = append(failed, key)
			d.logger.Error().Err(err).Str("job_key", key).Msg("job claim failed")
			continue
		}
		if !claimed {
			metrics.DispatchDeduped.Inc()
			d.logger.Debug().Str("job_key", key).Msg("job already claimed, skipping")
			continue
		}

		if err := d.submit(ctx, alert, accountID, key); err != nil {
			failed = append(failed, key)
			d.logger.Error().Err(err).Str("job_key", key).Msg("job submission failed, claim left pending")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("dispatch: %d of %d submissions pending retry", len(failed), len(alert.AccountIDs))
	}
	return nil
}

// ResubmitPending closes dispatch gaps. Called at the start of every
// tick, it retries queue submission for claims that never made it onto
// the queue, then re-dispatches EXECUTED alerts whose claim count is
// short of their bound accounts — the hole left when the claim write
// itself failed, or the process died right after the EXECUTED
// transition. Re-dispatch is safe: existing claims dedupe.
func (d *Dispatcher) ResubmitPending(ctx context.Context, mode monitor.TradeMode) error {
	pending, err := d.jobs.ListPendingJobs(ctx, mode)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}

	var errs []error
	for _, job := range pending {
		alert, err := d.alerts.GetAlert(ctx, job.AlertID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.submit(ctx, alert, job.AccountID, job.JobKey); err != nil {
			errs = append(errs, err)
			continue
		}
		d.logger.Info().Str("job_key", job.JobKey).Msg("pending job resubmitted")
	}

	missing, err := d.alerts.ListUnderDispatchedAlerts(ctx, mode)
	if err != nil {
		errs = append(errs, fmt.Errorf("list under-dispatched alerts: %w", err))
		return errors.Join(errs...)
	}
	for i := range missing {
		alert := missing[i]
		if err := d.Dispatch(ctx, &alert); err != nil {
			errs = append(errs, err)
			continue
		}
		d.logger.Info().Str("alert_id", alert.ID).Msg("missing job claims re-dispatched")
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) submit(ctx context.Context, alert *monitor.Alert, accountID, key string) error {
	jobID, err := d.queue.Submit(ctx, alert.TradeMode, queue.JobPayload{
		JobKey:         key,
		AlertID:        alert.ID,
		AccountID:      accountID,
		Symbol:         alert.Symbol,
		Side:           string(alert.Side),
		TradeMode:      string(alert.TradeMode),
		ExecutionPrice: alert.ExecutionPrice.String(),
		CreatedAt:      d.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("submit job %s: %w", key, err)
	}

	at := d.now().UTC()
	if err := d.jobs.MarkJobSubmitted(ctx, key, jobID, at); err != nil {
		return fmt.Errorf("mark job submitted %s: %w", key, err)
	}
	if err := d.alerts.AppendExecutedJob(ctx, alert.ID, jobID); err != nil {
		return fmt.Errorf("append executed job %s: %w", key, err)
	}

	metrics.DispatchSubmitted.Inc()
	return nil
}
