package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"penalty-alerts/internal/app"
)

var (
	replayFile    string
	replaySend    bool
	replayPersist bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run one cycle against a saved livescores payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := getApp().Replay(cmd.Context(), app.ReplayOptions{
			File:    replayFile,
			Send:    replaySend,
			Persist: replayPersist,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "matches: %d\nactive: %d\nevents: %d\nalerts: %d\n",
			report.Matches, report.Active, report.Events, report.Alerts)
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "Path to a saved livescores JSON payload")
	replayCmd.Flags().BoolVar(&replaySend, "send", false, "Deliver alerts to the configured channel instead of logging them")
	replayCmd.Flags().BoolVar(&replayPersist, "persist", false, "Record new keys and alert history")
	_ = replayCmd.MarkFlagRequired("file")
}
