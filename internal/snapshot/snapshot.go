// Package snapshot loads the incident, taxonomy and statistics data as one
// immutable unit and swaps it atomically on refresh.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"norloworld/internal/core"
	"norloworld/internal/facets"
	"norloworld/internal/log"
	"norloworld/internal/sheets"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("snapshot not loaded")

// Snapshot is one consistent view of the data. It must not be mutated once
// published.
type Snapshot struct {
	Records   []core.Record
	Taxonomy  core.Taxonomy
	Stats     core.StatsSnapshot
	Options   facets.Options
	Version   uint64
	FetchedAt time.Time
}

// Loader fetches the three data sets concurrently.
type Loader struct {
	source sheets.Source
	now    func() time.Time
}

func NewLoader(source sheets.Source) *Loader {
	return &Loader{source: source, now: time.Now}
}

// Load fetches records, taxonomy and stats in parallel. Any failure fails
// the whole load.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	var (
		records []core.Record
		tax     core.Taxonomy
		stats   core.StatsSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if records, err = l.source.ListIncidents(gctx); err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if tax, err = l.source.ReadTaxonomy(gctx); err != nil {
			return fmt.Errorf("read taxonomy: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if stats, err = l.source.ReadStats(gctx); err != nil {
			return fmt.Errorf("read stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if stats.Tree == nil {
		stats.Tree = core.StatsTree{}
	}
	return &Snapshot{
		Records:   records,
		Taxonomy:  tax,
		Stats:     stats,
		Options:   facets.FromTaxonomy(tax),
		FetchedAt: l.now(),
	}, nil
}

// Store holds the current snapshot.
type Store struct {
	loader  *Loader
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	logger  *log.Logger

	// OnRefresh, when set, observes every refresh attempt.
	OnRefresh func(s *Snapshot, err error, took time.Duration)
}

func NewStore(loader *Loader, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{loader: loader, logger: logger.WithComponent(log.ComponentSnapshot)}
}

// Current returns the published snapshot, or ErrNotLoaded.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Ready reports whether a snapshot has been published.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// Refresh loads a new snapshot and publishes it. On failure the previous
// snapshot stays current.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.loader.Load(ctx)
	if err == nil {
		snap.Version = s.version.Add(1)
		s.current.Store(snap)
	}
	if s.OnRefresh != nil {
		s.OnRefresh(snap, err, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("refresh snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "Snapshot refreshed",
		log.FieldVersion, snap.Version,
		log.FieldCount, len(snap.Records),
		log.FieldDuration, time.Since(start))
	return snap, nil
}

// Run refreshes every interval until ctx is done. Failures are logged and
// the previous snapshot is kept.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "Snapshot refresh failed", log.FieldError, err)
			}
		}
	}
}
