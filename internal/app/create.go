package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/service"
)

// CreateOptions describe a signal submitted from the command line.
type CreateOptions struct {
	SourceID   string
	OwnerID    string
	AccountIDs []string
	Symbol     string
	Venue      string
	Side       string
	Mode       string
}

// CreateAlert validates a signal and starts monitoring it.
func (a *App) CreateAlert(ctx context.Context, opts CreateOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	side := monitor.Side(strings.ToUpper(opts.Side))
	mode := monitor.TradeMode(strings.ToUpper(opts.Mode))
	venue := opts.Venue
	if venue == "" {
		venue = a.Config.PriceFeed.DefaultVenue
	}

	resolver := a.newResolver(store)
	svc := service.New(mode, nil, store, resolver, a.newFetcher(), nil, service.Options{
		FetchTimeout: a.Config.Monitor.FetchTimeout,
	}, a.Logger)

	alert, err := svc.CreateAlert(ctx, service.CreateParams{
		SourceID:   opts.SourceID,
		OwnerID:    opts.OwnerID,
		AccountIDs: opts.AccountIDs,
		Symbol:     strings.ToUpper(opts.Symbol),
		Venue:      venue,
		Side:       side,
		TradeMode:  mode,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "alert %s created: %s %s on %s, anchored at %s\n",
		alert.ID, alert.Side, alert.Symbol, alert.Venue, alert.AnchorPrice.String())
	return nil
}
