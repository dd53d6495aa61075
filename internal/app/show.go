package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"entry-confirm-alerts/internal/monitor"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Mode string
}

// Show prints the alerts currently being monitored.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	modes := []monitor.TradeMode{monitor.ModeReal, monitor.ModeSimulation}
	if opts.Mode != "" {
		mode := monitor.TradeMode(strings.ToUpper(opts.Mode))
		if !mode.Valid() {
			return fmt.Errorf("unknown trade mode %q", opts.Mode)
		}
		modes = []monitor.TradeMode{mode}
	}

	var open []monitor.Alert
	for _, mode := range modes {
		alerts, err := store.ListOpenAlerts(ctx, mode)
		if err != nil {
			return err
		}
		open = append(open, alerts...)
	}

	if len(open) == 0 {
		fmt.Fprintln(os.Stdout, "no open alerts")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSymbol\tSide\tMode\tPhase\tAnchor\tCurrent\tTrigger\tCycles\tStarted (UTC)")

	for _, alert := range open {
		trigger := "-"
		cycles := fmt.Sprintf("%d", alert.LateralCycles)
		if alert.SubStatus == monitor.PhaseArmed {
			trigger = alert.TriggerPrice.String()
			cycles = fmt.Sprintf("%d", alert.ConfirmCycles)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.Symbol,
			alert.Side,
			alert.TradeMode,
			alert.SubStatus,
			alert.AnchorPrice.String(),
			alert.CurrentPrice.String(),
			trigger,
			cycles,
			alert.StartedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}
