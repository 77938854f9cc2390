package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"norloworld/internal/bridge"
	"norloworld/internal/core"
	"norloworld/internal/filter"
	"norloworld/internal/stats"
)

func newLinkCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Build or read the query linking statistics to incidents",
	}
	cmd.AddCommand(newLinkEncodeCommand(o), newLinkDecodeCommand(o))
	return cmd
}

func newLinkEncodeCommand(o *options) *cobra.Command {
	var q stats.Query
	cmd := &cobra.Command{
		Use:   "encode DRIVER",
		Short: "Print the incidents query for a driver and month range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Driver = args[0]
			q := q.WithDefaults(o.now())
			link, ok := bridge.ForStats(q)
			if !ok {
				return fmt.Errorf("%w: %s %s to %s for %q", core.ErrInvalidMonthRange, q.Year, q.StartMonth, q.EndMonth, q.Driver)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), link)
			return err
		},
	}
	cmd.Flags().StringVarP(&q.Year, "year", "y", "", "Year (default: current year)")
	cmd.Flags().StringVar(&q.StartMonth, "start-month", "", "First month (default: JANUARY)")
	cmd.Flags().StringVar(&q.EndMonth, "end-month", "", "Last month (default: DECEMBER)")
	return cmd
}

type decodedLink struct {
	Driver        string        `json:"driver"`
	StartMonth    *time.Time    `json:"startMonth,omitempty"`
	EndMonth      *time.Time    `json:"endMonth,omitempty"`
	FromOtherView bool          `json:"fromOtherView"`
	Malformed     []string      `json:"malformed,omitempty"`
	Filters       *filter.State `json:"filters"`
}

func newLinkDecodeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decode QUERY",
		Short: "Show the driver, months and filters carried by a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := bridge.Decode(args[0])
			state := filter.NewState()
			p.Seed(state)

			out := decodedLink{
				Driver:        p.Driver,
				FromOtherView: p.FromOtherView,
				Malformed:     p.Malformed,
				Filters:       state,
			}
			if !p.StartMonth.IsZero() {
				out.StartMonth = &p.StartMonth
			}
			if !p.EndMonth.IsZero() {
				out.EndMonth = &p.EndMonth
			}
			return o.write(cmd, out)
		},
	}
}
