package app

import (
	"context"
	"fmt"
	"os"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/service"
)

// CancelOptions identify the alert to cancel.
type CancelOptions struct {
	AlertID string
	OwnerID string
	Reason  string
}

// CancelAlert manually cancels an open alert. A concurrently executed
// alert is reported, not overwritten.
func (a *App) CancelAlert(ctx context.Context, opts CancelOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	resolver := a.newResolver(store)
	svc := service.New(monitor.ModeSimulation, nil, store, resolver, nil, nil, service.Options{}, a.Logger)

	if err := svc.Cancel(ctx, opts.AlertID, opts.OwnerID, opts.Reason); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert %s cancelled\n", opts.AlertID)
	return nil
}
