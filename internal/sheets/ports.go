package sheets

import (
	"context"

	"norloworld/internal/core"
)

// Ports for outbound adapters.
type (
	// IncidentLister returns every incident row as a header-keyed record.
	IncidentLister interface {
		ListIncidents(ctx context.Context) ([]core.Record, error)
	}

	// TaxonomyReader returns the driver roster and grouped incident types.
	TaxonomyReader interface {
		ReadTaxonomy(ctx context.Context) (core.Taxonomy, error)
	}

	// StatsReader returns the per-driver statistics tree.
	StatsReader interface {
		ReadStats(ctx context.Context) (core.StatsSnapshot, error)
	}

	// IncidentWriter appends a submitted incident and returns a reference to
	// the written row.
	IncidentWriter interface {
		AppendIncident(ctx context.Context, r core.IncidentReport) (rowRef string, err error)
	}

	// Source bundles the readers a snapshot is loaded from.
	Source interface {
		IncidentLister
		TaxonomyReader
		StatsReader
	}
)
