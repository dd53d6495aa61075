package cli

import (
	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rederive and backfill savings for executed alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Recompute(cmd.Context())
	},
}
