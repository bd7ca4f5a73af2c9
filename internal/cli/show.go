package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"penalty-alerts/internal/app"
)

var (
	showLimit int
	showCount bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			Limit:     showLimit,
			WithCount: showCount,
			Out:       cmd.OutOrStdout(),
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of alerts to display")
	showCmd.Flags().BoolVar(&showCount, "count", false, "Also print the total number of stored alerts")
}
