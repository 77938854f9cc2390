package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"norloworld/internal/snapshot"
)

// SnapshotFunc loads the data a command works on.
type SnapshotFunc func(ctx context.Context) (*snapshot.Snapshot, error)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type options struct {
	load   SnapshotFunc
	now    func() time.Time
	format string
}

// NewRootCommand returns the incidents command tree reading data through
// load.
func NewRootCommand(load SnapshotFunc) *cobra.Command {
	return newRootCommand(&options{load: load, now: time.Now})
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "incidents",
		Short:         "Query driver incidents and statistics",
		Long:          "Filter incident records, slice driver statistics and build links between the two views",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch o.format {
			case formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (json or yaml)", o.format)
			}
		},
	}
	root.PersistentFlags().StringVarP(&o.format, "output", "o", formatJSON, "Output format: json or yaml")

	root.AddCommand(
		newFilterCommand(o),
		newStatsCommand(o),
		newLinkCommand(o),
		newOptionsCommand(o),
	)
	return root
}

func (o *options) snapshot(cmd *cobra.Command) (*snapshot.Snapshot, error) {
	snap, err := o.load(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return snap, nil
}

func (o *options) write(cmd *cobra.Command, v any) error {
	return writeValue(cmd.OutOrStdout(), o.format, v)
}
