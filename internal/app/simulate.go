package app

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"entry-confirm-alerts/internal/monitor"
)

// SimulateOptions replay a price series through the detector with the
// compiled-in or given thresholds, without touching storage.
type SimulateOptions struct {
	Side     string
	Anchor   decimal.Decimal
	Prices   []decimal.Decimal
	Interval time.Duration
	// Overrides are key=value threshold changes applied on top of the
	// compiled-in defaults, same keys as `config set`.
	Overrides []string
}

// Simulate walks the state machine over a fixed price series and prints
// each transition. Useful for tuning thresholds against historical
// candles before applying them.
func (a *App) Simulate(opts SimulateOptions) error {
	side := monitor.Side(strings.ToUpper(opts.Side))
	if !side.Valid() {
		return fmt.Errorf("invalid side %q", opts.Side)
	}
	if len(opts.Prices) == 0 {
		return fmt.Errorf("at least one price sample is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	cfg := monitor.DefaultConfig()
	for _, override := range opts.Overrides {
		key, value, ok := strings.Cut(override, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", override)
		}
		if err := applyConfigField(&cfg, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds := cfg.ThresholdsFor(side)

	start := time.Now().UTC()
	alert := &monitor.Alert{
		ID:           "simulated",
		Symbol:       "SIMULATED",
		Side:         side,
		TradeMode:    monitor.ModeSimulation,
		State:        monitor.StateMonitoring,
		SubStatus:    monitor.PhaseLateral,
		AnchorPrice:  opts.Anchor,
		PriceMinimum: opts.Anchor,
		PriceMaximum: opts.Anchor,
		CurrentPrice: opts.Anchor,
		StartedAt:    start,
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Tick\tPrice\tState\tPhase\tAnchor\tLateral\tConfirm\tNote")

	for i, price := range opts.Prices {
		at := start.Add(time.Duration(i+1) * interval)
		prevPhase := alert.SubStatus
		decision := monitor.Evaluate(alert, monitor.Sample{Price: price, At: at}, thresholds)
		decision.Apply(alert, at)

		note := ""
		switch {
		case decision.Fire:
			note = fmt.Sprintf("executed at %s", alert.ExecutionPrice.String())
		case decision.State == monitor.StateCancelled:
			note = string(alert.ExitReason)
		case decision.State == monitor.StateExpired:
			note = "timeout"
		case prevPhase == monitor.PhaseLateral && decision.SubStatus == monitor.PhaseArmed:
			note = fmt.Sprintf("armed, trigger %s", alert.TriggerPrice.String())
		}

		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i+1,
			price.String(),
			alert.State,
			alert.SubStatus,
			alert.AnchorPrice.String(),
			alert.LateralCycles,
			alert.ConfirmCycles,
			note,
		)

		if alert.State.Terminal() {
			break
		}
	}

	writer.Flush()

	if alert.State == monitor.StateExecuted {
		outcome := monitor.DeriveOutcome(alert)
		fmt.Fprintf(os.Stdout, "savings %s%%, efficiency %s%%\n",
			outcome.SavingsPct.StringFixed(3), outcome.EfficiencyPct.StringFixed(1))
	}
	return nil
}
