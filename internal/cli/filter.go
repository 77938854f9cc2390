package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"norloworld/internal/bridge"
	"norloworld/internal/core"
	"norloworld/internal/filter"
)

type filterOutput struct {
	Filters *filter.State `json:"filters"`
	Query   string        `json:"query"`
	Total   int           `json:"total"`
	Records []core.Record `json:"records"`
}

func newFilterCommand(o *options) *cobra.Command {
	var (
		selections = map[filter.Facet]*[]string{}
		start, end string
		query      string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "List the incidents matching facet selections",
		Long: `List the incidents matching every selected facet and the date range.

Selections within one facet are alternatives. --query accepts an incidents
query string, such as the link printed by "stats"; a query carrying
fromOtherView=true replaces every other selection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := url.Values{}
			if query != "" {
				parsed, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
				if err != nil {
					return fmt.Errorf("%w: --query: %v", core.ErrMalformedQueryParameters, err)
				}
				v = parsed
			}
			for _, f := range filter.Facets() {
				for _, name := range *selections[f] {
					v.Add(f.Key(), name)
				}
			}
			if start != "" {
				v.Set(filter.KeyStart, start)
			}
			if end != "" {
				v.Set(filter.KeyEnd, end)
			}

			state, qerr := bridge.State(v)
			if qerr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", qerr)
			}

			snap, err := o.snapshot(cmd)
			if err != nil {
				return err
			}
			res := filter.Run(snap.Records, state, filter.DefaultFields)
			records := res.Records
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if records == nil {
				records = []core.Record{}
			}
			return o.write(cmd, filterOutput{
				Filters: state,
				Query:   state.Values().Encode(),
				Total:   res.Total,
				Records: records,
			})
		},
	}

	for _, f := range filter.Facets() {
		sel := new([]string)
		selections[f] = sel
		cmd.Flags().StringArrayVar(sel, f.Key(), nil, fmt.Sprintf("Select a %s (repeatable)", f.Key()))
	}
	cmd.Flags().StringVar(&start, "start", "", "First day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&query, "query", "", "Incidents query string")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of records to print (0 prints all)")
	return cmd
}
