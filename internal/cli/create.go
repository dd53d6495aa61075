package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"entry-confirm-alerts/internal/app"
)

var (
	createSource   string
	createOwner    string
	createAccounts []string
	createSymbol   string
	createVenue    string
	createSide     string
	createMode     string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Submit a signal and start monitoring for confirmation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if createSymbol == "" {
			return errors.New("--symbol is required")
		}
		if len(createAccounts) == 0 {
			return errors.New("--account is required at least once")
		}

		return getApp().CreateAlert(cmd.Context(), app.CreateOptions{
			SourceID:   createSource,
			OwnerID:    createOwner,
			AccountIDs: createAccounts,
			Symbol:     createSymbol,
			Venue:      createVenue,
			Side:       createSide,
			Mode:       createMode,
		})
	},
}

func init() {
	createCmd.Flags().StringVar(&createSource, "source", "", "Source signal identifier")
	createCmd.Flags().StringVar(&createOwner, "owner", "", "Owning user identifier")
	createCmd.Flags().StringArrayVar(&createAccounts, "account", nil, "Bound account identifier (repeatable)")
	createCmd.Flags().StringVar(&createSymbol, "symbol", "", "Trading pair symbol, e.g. SOLUSDT")
	createCmd.Flags().StringVar(&createVenue, "venue", "", "Price venue; defaults to the configured venue")
	createCmd.Flags().StringVar(&createSide, "side", "BUY", "Trade direction: BUY or SELL")
	createCmd.Flags().StringVar(&createMode, "mode", "SIMULATION", "Trade mode: REAL or SIMULATION")
}
