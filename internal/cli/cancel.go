package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"entry-confirm-alerts/internal/app"
)

var (
	cancelOwner  string
	cancelReason string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <alert-id>",
	Short: "Manually cancel an open alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return errors.New("alert id is required")
		}
		return getApp().CancelAlert(cmd.Context(), app.CancelOptions{
			AlertID: args[0],
			OwnerID: cancelOwner,
			Reason:  cancelReason,
		})
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelOwner, "owner", "", "Owner check; rejects cancelling someone else's alert")
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Reason recorded with the cancellation")
}
