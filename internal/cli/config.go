package cli

import (
	"github.com/spf13/cobra"
)

var configScope string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change threshold sets",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored threshold set for a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ConfigGet(cmd.Context(), configScope)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set key=value [key=value ...]",
	Short: "Apply threshold changes to a scope",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ConfigSet(cmd.Context(), configScope, args)
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configScope, "scope", "", "Config scope: global or an owner id (default global)")
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
