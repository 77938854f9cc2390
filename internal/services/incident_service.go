package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"norloworld/internal/core"
	"norloworld/internal/log"
	"norloworld/internal/sheets"
)

// IncidentStore persists submitted reports until they are synced.
type IncidentStore interface {
	SaveIncident(ctx context.Context, id string, r core.IncidentReport) error
}

// SyncPublisher announces a stored incident to the sync worker.
type SyncPublisher interface {
	PublishIncidentSync(ctx context.Context, id string) error
}

// SubmitResult describes where a submitted report went.
type SubmitResult struct {
	ID     string `json:"id"`
	Ref    string `json:"ref"`
	Queued bool   `json:"queued"`
}

// IncidentService accepts incident reports. In queued mode reports are saved
// to SQLite and announced over AMQP; otherwise they are written straight to
// the configured sheet writer.
type IncidentService struct {
	store     IncidentStore
	publisher SyncPublisher
	writer    sheets.IncidentWriter
	newID     func() string
	logger    *log.Logger
	events    *log.StructuredLogger
}

// NewQueuedIncidentService saves reports locally and publishes sync
// messages. publisher may be nil, in which case the worker's pending sweep
// picks the reports up.
func NewQueuedIncidentService(store IncidentStore, publisher SyncPublisher, logger *log.Logger) *IncidentService {
	return (&IncidentService{
		store:     store,
		publisher: publisher,
		newID:     uuid.NewString,
	}).withLogger(logger)
}

// NewDirectIncidentService writes reports synchronously.
func NewDirectIncidentService(writer sheets.IncidentWriter, logger *log.Logger) *IncidentService {
	return (&IncidentService{
		writer: writer,
		newID:  uuid.NewString,
	}).withLogger(logger)
}

func (s *IncidentService) withLogger(logger *log.Logger) *IncidentService {
	if logger == nil {
		logger = log.Default()
	}
	s.logger = logger.WithComponent(log.ComponentIncident)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Submit validates and records one report.
func (s *IncidentService) Submit(ctx context.Context, r core.IncidentReport) (SubmitResult, error) {
	r.DriverName = strings.TrimSpace(r.DriverName)
	if err := r.Validate(); err != nil {
		return SubmitResult{}, err
	}
	id := s.newID()

	if s.store == nil {
		if s.writer == nil {
			return SubmitResult{}, errors.New("incident service has no writer")
		}
		ref, err := s.writer.AppendIncident(ctx, r)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("append incident: %w", err)
		}
		s.events.LogIncidentSubmitted(ctx, id, r.DriverName, ref)
		return SubmitResult{ID: id, Ref: ref}, nil
	}

	if err := s.store.SaveIncident(ctx, id, r); err != nil {
		return SubmitResult{}, fmt.Errorf("save incident: %w", err)
	}
	s.events.LogIncidentSubmitted(ctx, id, r.DriverName, "")

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping sync message", log.FieldIncidentID, id)
	} else if err := s.publisher.PublishIncidentSync(ctx, id); err != nil {
		// The report is stored; the pending sweep will sync it.
		s.events.LogError(ctx, "Failed to publish sync message", err, "publish_failed", log.OpSync,
			log.NewFields().WithIncident(id, r.DriverName, ""))
	}
	return SubmitResult{ID: id, Ref: id, Queued: true}, nil
}
