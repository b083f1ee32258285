package cli

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one poll cycle now and print the outcome",
	Long:  "Runs a single cycle against the review API. A status change is announced in chat as usual; failures are only printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), cmd.OutOrStdout())
	},
}
