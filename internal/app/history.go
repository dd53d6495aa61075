package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/storage"
)

// HistoryOptions configure the history listing.
type HistoryOptions struct {
	Symbol  string
	OwnerID string
	States  []string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// History prints terminal alerts with their derived outcome figures.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	states := make([]monitor.State, 0, len(opts.States))
	for _, s := range opts.States {
		state := monitor.State(strings.ToUpper(s))
		if !state.Terminal() {
			return fmt.Errorf("history covers terminal states only, got %q", s)
		}
		states = append(states, state)
	}

	alerts, err := store.ListHistory(ctx, storage.HistoryFilter{
		Symbol:  strings.ToUpper(opts.Symbol),
		OwnerID: opts.OwnerID,
		States:  states,
		From:    opts.From,
		To:      opts.To,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no matching alerts")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSymbol\tSide\tMode\tState\tReason\tAnchor\tExecuted\tSavings%\tEfficiency%\tDuration\tEnded (UTC)")

	for _, alert := range alerts {
		outcome := monitor.DeriveOutcome(&alert)

		executed, savings, efficiency := "-", "-", "-"
		if alert.State == monitor.StateExecuted {
			executed = alert.ExecutionPrice.String()
			savings = outcome.SavingsPct.StringFixed(3)
			efficiency = outcome.EfficiencyPct.StringFixed(1)
		}
		reason := string(alert.ExitReason)
		if reason == "" {
			reason = "-"
		}
		ended := "-"
		if alert.EndedAt != nil {
			ended = alert.EndedAt.UTC().Format(time.RFC3339)
		}

		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.Symbol,
			alert.Side,
			alert.TradeMode,
			alert.State,
			reason,
			alert.AnchorPrice.String(),
			executed,
			savings,
			efficiency,
			outcome.Duration.Round(time.Second),
			ended,
		)
	}

	writer.Flush()
	return nil
}
