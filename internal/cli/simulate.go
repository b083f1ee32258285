package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"homework-watcher/internal/app"
)

var (
	simulateName   string
	simulateStatus string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-notify",
	Short: "Send the message a status change would produce for a fake homework",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateName == "" {
			return errors.New("--name must be provided")
		}

		out, err := getApp().SimulateNotify(cmd.Context(), app.SimulateOptions{
			Name:   simulateName,
			Status: simulateStatus,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Text)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateName, "name", "", "Homework name to announce")
	simulateCmd.Flags().StringVar(&simulateStatus, "status", "approved", "Review status: approved, reviewing or rejected")
}
