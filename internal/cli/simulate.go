package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"penalty-alerts/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一条比赛事件并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOpts.Addition == "" && simulateOpts.Type == "" {
			return errors.New("--addition 或 --type 至少需要一个")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateOpts)
	},
}

func init() {
	flags := simulateCmd.Flags()
	flags.StringVar(&simulateOpts.Home, "home", "Home FC", "主队名称")
	flags.StringVar(&simulateOpts.Away, "away", "Away FC", "客队名称")
	flags.IntVar(&simulateOpts.Minute, "minute", 45, "事件分钟")
	flags.IntVar(&simulateOpts.Extra, "extra", 0, "补时分钟")
	flags.StringVar(&simulateOpts.Type, "type", "", "Event type, e.g. Foul, Yellow Card, Red Card")
	flags.StringVar(&simulateOpts.Addition, "addition", "", "Event addition, e.g. \"Penalty confirmed\" or \"1st Penalty\"")
	flags.StringVar(&simulateOpts.Location, "location", "", "meta.location, e.g. \"18 yds\"")
	flags.StringVar(&simulateOpts.Zone, "zone", "", "meta.zone, e.g. defensive")
	flags.StringVar(&simulateOpts.Description, "description", "", "Free-text event description")
}
