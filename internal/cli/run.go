package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"penalty-alerts/internal/config"
)

var (
	runDryRun bool
	runOnce   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll livescores and post penalty alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if runDryRun {
			a.Config.Alerting.Channel = config.ChannelDryRun
		}
		if !runOnce {
			return a.Run(cmd.Context())
		}

		report, err := a.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cycle %s: %d active matches, %d alerts in %s\n",
			report.CycleID, report.Active, report.Alerts, report.Duration)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log alerts instead of sending them")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single poll cycle and exit")
}
