package cli

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the local price cache without publishing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Update(cmd.Context())
	},
}
