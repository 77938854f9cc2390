package cli

import (
	"github.com/spf13/cobra"

	"norloworld/internal/bridge"
	"norloworld/internal/stats"
)

type statsOutput struct {
	stats.Report
	IncidentsQuery string `json:"incidentsQuery,omitempty"`
}

func newStatsCommand(o *options) *cobra.Command {
	var q stats.Query
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a driver's incident counts by month and reason",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := q.WithDefaults(o.now())
			snap, err := o.snapshot(cmd)
			if err != nil {
				return err
			}
			rep, err := stats.Run(snap.Stats.Tree, q)
			if err != nil {
				return err
			}
			link, _ := bridge.ForStats(q)
			return o.write(cmd, statsOutput{Report: rep, IncidentsQuery: link})
		},
	}
	cmd.Flags().StringVarP(&q.Driver, "driver", "d", "", "Driver name (required)")
	cmd.Flags().StringVarP(&q.Year, "year", "y", "", "Year (default: current year)")
	cmd.Flags().StringVar(&q.StartMonth, "start-month", "", "First month, e.g. MARCH (default: JANUARY)")
	cmd.Flags().StringVar(&q.EndMonth, "end-month", "", "Last month (default: DECEMBER)")
	return cmd
}
