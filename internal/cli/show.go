package cli

import (
	"github.com/spf13/cobra"

	"entry-confirm-alerts/internal/app"
)

var showMode string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display alerts currently being monitored",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Mode: showMode,
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&showMode, "mode", "", "Restrict to one trade mode: REAL or SIMULATION")
}
