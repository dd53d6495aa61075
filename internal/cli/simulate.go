package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"entry-confirm-alerts/internal/app"
)

var (
	simulateSide     string
	simulateAnchor   float64
	simulatePrices   []float64
	simulateInterval time.Duration
	simulateSet      []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a price series through the detector",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAnchor <= 0 {
			return errors.New("--anchor must be greater than zero")
		}
		if len(simulatePrices) == 0 {
			return errors.New("--prices is required")
		}

		prices := make([]decimal.Decimal, 0, len(simulatePrices))
		for _, p := range simulatePrices {
			if p <= 0 {
				return fmt.Errorf("price samples must be greater than zero, got %v", p)
			}
			prices = append(prices, decimal.NewFromFloat(p))
		}

		return getApp().Simulate(app.SimulateOptions{
			Side:      simulateSide,
			Anchor:    decimal.NewFromFloat(simulateAnchor),
			Prices:    prices,
			Interval:  simulateInterval,
			Overrides: simulateSet,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSide, "side", "BUY", "Trade direction: BUY or SELL")
	simulateCmd.Flags().Float64Var(&simulateAnchor, "anchor", 0, "Anchor price at signal time")
	simulateCmd.Flags().Float64SliceVar(&simulatePrices, "prices", nil, "Comma-separated price samples, one per tick")
	simulateCmd.Flags().DurationVar(&simulateInterval, "interval", time.Minute, "Simulated spacing between samples")
	simulateCmd.Flags().StringArrayVar(&simulateSet, "set", nil, "Threshold override key=value, same keys as config set (repeatable)")
}
