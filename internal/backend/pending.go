package backend

import (
	"context"
	"fmt"

	"norloworld/internal/core"
	"norloworld/internal/sheets"
)

// PendingLister returns queued incidents not yet in the spreadsheet.
type PendingLister interface {
	PendingRecords(ctx context.Context) ([]core.Record, error)
}

type pendingSource struct {
	sheets.Source
	pending PendingLister
}

// WithPending wraps src so that ListIncidents also returns the queued
// incidents, after the spreadsheet rows.
func WithPending(src sheets.Source, pending PendingLister) sheets.Source {
	return &pendingSource{Source: src, pending: pending}
}

func (p *pendingSource) ListIncidents(ctx context.Context) ([]core.Record, error) {
	records, err := p.Source.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	queued, err := p.pending.PendingRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queued incidents: %w", err)
	}
	out := make([]core.Record, 0, len(records)+len(queued))
	out = append(out, records...)
	return append(out, queued...), nil
}
