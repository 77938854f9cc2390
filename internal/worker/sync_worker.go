// Package worker pushes incidents queued in SQLite to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"norloworld/internal/amqp"
	"norloworld/internal/log"
	"norloworld/internal/sheets"
	"norloworld/internal/storage"
)

// IncidentStore is the part of the SQLite repository the worker needs.
type IncidentStore interface {
	GetIncident(ctx context.Context, id string) (*storage.StoredIncident, error)
	ListUnsynced(ctx context.Context, limit int) ([]storage.StoredIncident, error)
	MarkSynced(ctx context.Context, id, ref string) error
	MarkSyncError(ctx context.Context, id string, cause error) error
}

// SyncWorker handles synchronization of incidents from SQLite to Google Sheets
type SyncWorker struct {
	store     IncidentStore
	sheets    sheets.IncidentWriter
	batchSize int
	logger    *log.Logger

	// OnSync, when set, observes every append attempt.
	OnSync func(id string, err error)
}

func NewSyncWorker(store IncidentStore, writer sheets.IncidentWriter, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SyncWorker{
		store:     store,
		sheets:    writer,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage processes a single incident sync message from AMQP.
// Unknown or already synced incidents are acknowledged without a write.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.IncidentSyncMessage) error {
	inc, err := w.store.GetIncident(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Sync message for unknown incident", log.FieldIncidentID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get incident from storage: %w", err)
	}
	if inc.SyncStatus == storage.StatusSynced {
		w.logger.InfoContext(ctx, "Incident already synced", log.FieldIncidentID, msg.ID, log.FieldIncidentRef, inc.SheetsRef)
		return nil
	}
	return w.sync(ctx, inc)
}

// ProcessPending syncs up to one batch of incidents that have not reached
// the spreadsheet. It covers lost messages and earlier failures.
func (w *SyncWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	pending, err := w.store.ListUnsynced(ctx, w.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending incidents: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending incidents", log.FieldCount, len(pending))
	for i := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.sync(ctx, &pending[i]); err != nil {
			failed++
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Pending sweep completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, failed, nil
}

// Run sweeps pending incidents at startup and then every interval until ctx
// is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) {
	w.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SyncWorker) sweep(ctx context.Context) {
	if _, _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err)
	}
}

func (w *SyncWorker) sync(ctx context.Context, inc *storage.StoredIncident) error {
	ref, err := w.sheets.AppendIncident(ctx, inc.Report)
	if w.OnSync != nil {
		w.OnSync(inc.ID, err)
	}
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, inc.ID, err); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldIncidentID, inc.ID, log.FieldError, markErr)
		}
		w.logger.ErrorContext(ctx, "Failed to sync incident", log.FieldIncidentID, inc.ID, log.FieldError, err)
		return fmt.Errorf("append incident %s: %w", inc.ID, err)
	}

	// The row is written; a bookkeeping failure here only means a later
	// sweep may append it again.
	if err := w.store.MarkSynced(ctx, inc.ID, ref); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldIncidentID, inc.ID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced incident",
		log.NewFields().WithIncident(inc.ID, inc.Report.DriverName, ref).ToSlice()...)
	return nil
}
