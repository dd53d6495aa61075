package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TicksTotal counts scheduler ticks per trade mode.
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_ticks_total",
			Help: "Total number of scheduler ticks",
		},
		[]string{"trade_mode"},
	)
	// AlertsProcessed counts per-alert tick evaluations.
	AlertsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_alerts_processed_total",
			Help: "Total number of per-alert evaluations",
		},
		[]string{"trade_mode"},
	)
	// AlertsFired counts breakout confirmations.
	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_alerts_fired_total",
			Help: "Total number of alerts that reached EXECUTED",
		},
		[]string{"trade_mode", "side"},
	)
	// AlertsCancelled counts adverse-bound and manual cancellations.
	AlertsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_alerts_cancelled_total",
			Help: "Total number of alerts cancelled",
		},
		[]string{"trade_mode", "reason"},
	)
	// AlertsExpired counts monitoring timeouts.
	AlertsExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_alerts_expired_total",
			Help: "Total number of alerts expired by timeout",
		},
		[]string{"trade_mode"},
	)
	// FetchErrors counts price fetch failures skipped by the scheduler.
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_price_fetch_errors_total",
			Help: "Total number of transient price fetch failures",
		},
		[]string{"venue"},
	)
	// DispatchSubmitted counts successful queue submissions.
	DispatchSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_dispatch_submitted_total",
			Help: "Total number of execution jobs submitted",
		},
	)
	// DispatchDeduped counts submissions suppressed by the job key.
	DispatchDeduped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_dispatch_deduped_total",
			Help: "Total number of duplicate dispatch attempts suppressed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		AlertsProcessed,
		AlertsFired,
		AlertsCancelled,
		AlertsExpired,
		FetchErrors,
		DispatchSubmitted,
		DispatchDeduped,
	)
}
