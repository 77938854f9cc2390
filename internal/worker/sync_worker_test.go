package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norloworld/internal/amqp"
	"norloworld/internal/core"
	"norloworld/internal/log"
	"norloworld/internal/sheets/memory"
	"norloworld/internal/storage"
)

type flakyWriter struct {
	mu    sync.Mutex
	fail  error
	calls []string
}

func (f *flakyWriter) AppendIncident(ctx context.Context, r core.IncidentReport) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.DriverName)
	if f.fail != nil {
		return "", f.fail
	}
	return fmt.Sprintf("Incidents!A%d", len(f.calls)+1), nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func save(t *testing.T, repo *storage.SQLiteRepository, id, driver string) {
	t.Helper()
	require.NoError(t, repo.SaveIncident(context.Background(), id, core.IncidentReport{
		DriverName:  driver,
		DateTime:    time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC),
		Description: "Lane departure",
		Incident:    "Unsafe Driving",
		SubmittedBy: "Dispatch",
	}))
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	save(t, repo, "a", "Jane Doe")

	sheet := memory.New(nil, core.Taxonomy{}, core.StatsSnapshot{})
	w := NewSyncWorker(repo, sheet, 10, quietLogger())

	var observed []string
	w.OnSync = func(id string, err error) { observed = append(observed, id) }

	require.NoError(t, w.HandleSyncMessage(ctx, &amqp.IncidentSyncMessage{ID: "a"}))

	inc, err := repo.GetIncident(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusSynced, inc.SyncStatus)
	assert.Equal(t, "mem:1", inc.SheetsRef)

	records, _ := sheet.ListIncidents(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, "Jane Doe", records[0][core.FieldDriverName])

	// Redelivery does not write twice.
	require.NoError(t, w.HandleSyncMessage(ctx, &amqp.IncidentSyncMessage{ID: "a"}))
	records, _ = sheet.ListIncidents(ctx)
	assert.Len(t, records, 1)
	assert.Equal(t, []string{"a"}, observed)

	assert.NoError(t, w.HandleSyncMessage(ctx, &amqp.IncidentSyncMessage{ID: "unknown"}))
}

func TestHandleSyncMessageMarksErrors(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	save(t, repo, "a", "Jane Doe")

	writer := &flakyWriter{fail: errors.New("quota exceeded")}
	w := NewSyncWorker(repo, writer, 10, quietLogger())

	err := w.HandleSyncMessage(ctx, &amqp.IncidentSyncMessage{ID: "a"})
	require.Error(t, err)

	inc, err := repo.GetIncident(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusError, inc.SyncStatus)
	assert.Equal(t, "quota exceeded", inc.LastError)
	assert.Equal(t, 1, inc.Attempts)
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	save(t, repo, "a", "Jane Doe")
	save(t, repo, "b", "John Roe")
	save(t, repo, "c", "Ann Poe")

	writer := &flakyWriter{fail: errors.New("down")}
	w := NewSyncWorker(repo, writer, 2, quietLogger())

	synced, failed, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
	assert.Equal(t, 2, failed, "one batch per sweep")

	writer.mu.Lock()
	writer.fail = nil
	writer.mu.Unlock()

	for i := 0; i < 2; i++ {
		_, _, err = w.ProcessPending(ctx)
		require.NoError(t, err)
	}
	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[storage.StatusSynced])

	synced, failed, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced+failed)
}

// rejectingWriter fails every report for one driver.
type rejectingWriter struct {
	driver string
	flakyWriter
}

func (r *rejectingWriter) AppendIncident(ctx context.Context, rep core.IncidentReport) (string, error) {
	if rep.DriverName == r.driver {
		return "", errors.New("row rejected")
	}
	return r.flakyWriter.AppendIncident(ctx, rep)
}

func TestProcessPendingReachesNewIncidentsPastFailures(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	save(t, repo, "bad-1", "Broken")
	save(t, repo, "bad-2", "Broken")

	w := NewSyncWorker(repo, &rejectingWriter{driver: "Broken"}, 2, quietLogger())
	_, failed, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, failed)

	save(t, repo, "good", "Jane Doe")
	synced, _, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	inc, err := repo.GetIncident(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusSynced, inc.SyncStatus)
}

func TestRunSweepsAtStartup(t *testing.T) {
	repo := newRepo(t)
	save(t, repo, "a", "Jane Doe")
	writer := &flakyWriter{}
	w := NewSyncWorker(repo, writer, 10, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		inc, err := repo.GetIncident(context.Background(), "a")
		return err == nil && inc.SyncStatus == storage.StatusSynced
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
