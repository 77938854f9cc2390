package cli

import (
	"github.com/spf13/cobra"

	"norloworld/internal/core"
	"norloworld/internal/facets"
)

type optionsOutput struct {
	facets.Options
	Months       []core.FacetOption `json:"months"`
	StatsDrivers []core.FacetOption `json:"statsDrivers"`
}

func newOptionsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the values each facet can be filtered by",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := o.snapshot(cmd)
			if err != nil {
				return err
			}
			return o.write(cmd, optionsOutput{
				Options:      snap.Options,
				Months:       facets.MonthOptions(),
				StatsDrivers: facets.FromStatsDrivers(snap.Stats.Drivers),
			})
		},
	}
}
