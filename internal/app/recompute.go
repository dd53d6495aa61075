package app

import (
	"context"
	"fmt"
	"os"

	"entry-confirm-alerts/internal/monitor"
)

// Recompute rederives savings figures for every executed alert and
// backfills the stored column. Safe to rerun; the derivation is pure.
func (a *App) Recompute(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListExecutedAlerts(ctx)
	if err != nil {
		return err
	}

	updated := 0
	for i := range alerts {
		alert := alerts[i]
		outcome := monitor.DeriveOutcome(&alert)
		if err := store.SetSavings(ctx, alert.ID, outcome.SavingsPct.StringFixed(6)); err != nil {
			return fmt.Errorf("update alert %s: %w", alert.ID, err)
		}
		updated++
	}

	fmt.Fprintf(os.Stdout, "recomputed savings for %d executed alerts\n", updated)
	return nil
}
