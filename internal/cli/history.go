package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"entry-confirm-alerts/internal/app"
)

var (
	historySymbol string
	historyOwner  string
	historyStates []string
	historyFrom   string
	historyTo     string
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished alerts with their outcome figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.HistoryOptions{
			Symbol:  historySymbol,
			OwnerID: historyOwner,
			States:  historyStates,
			Limit:   historyLimit,
			Offset:  historyOffset,
		}

		var err error
		if opts.From, err = parseTimeFlag("from", historyFrom); err != nil {
			return err
		}
		if opts.To, err = parseTimeFlag("to", historyTo); err != nil {
			return err
		}

		return getApp().History(cmd.Context(), opts)
	},
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC3339, got %q", name, value)
	}
	return &parsed, nil
}

func init() {
	historyCmd.Flags().StringVar(&historySymbol, "symbol", "", "Filter by trading pair symbol")
	historyCmd.Flags().StringVar(&historyOwner, "owner", "", "Filter by owning user")
	historyCmd.Flags().StringSliceVar(&historyStates, "state", nil, "Filter by terminal state: EXECUTED, CANCELLED, EXPIRED")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "Only alerts started at or after this RFC3339 time")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "Only alerts started before this RFC3339 time")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 100, "Maximum rows to display")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "Rows to skip")
}
