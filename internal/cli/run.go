package cli

import (
	"github.com/spf13/cobra"

	"elspot2mqtt/internal/app"
)

var runStdout bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one publish cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{Stdout: runStdout})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runStdout, "stdout", false, "Print the payload instead of publishing it")
}
