package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"norloworld/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a stored incident.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
	StatusError   = "error"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no incident has the requested ID.
var ErrNotFound = errors.New("incident not found")

// StoredIncident is a submitted report with its sync bookkeeping.
type StoredIncident struct {
	ID         string
	Report     core.IncidentReport
	SyncStatus string
	SheetsRef  string
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveIncident stores a new report as pending.
func (r *SQLiteRepository) SaveIncident(ctx context.Context, id string, rep core.IncidentReport) error {
	var name, ctype, content string
	if rep.File != nil {
		name, ctype, content = rep.File.FileName, rep.File.ContentType, rep.File.Content
	}
	now := r.now().UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO incidents (
			id, driver_name, occurred_at, description, incident_type, submitted_by,
			attachment_name, attachment_type, attachment_content,
			sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rep.DriverName, rep.DateTime.UTC().Format(timeLayout), rep.Description, rep.Incident, rep.SubmittedBy,
		name, ctype, content,
		StatusPending, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert incident %s: %w", id, err)
	}
	return nil
}

const selectIncident = `
	SELECT id, driver_name, occurred_at, description, incident_type, submitted_by,
		attachment_name, attachment_type, attachment_content,
		sync_status, sheets_ref, attempts, last_error, created_at, updated_at
	FROM incidents`

// GetIncident loads one incident by ID.
func (r *SQLiteRepository) GetIncident(ctx context.Context, id string) (*StoredIncident, error) {
	row := r.db.QueryRowContext(ctx, selectIncident+` WHERE id = ?`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get incident %s: %w", id, err)
	}
	return inc, nil
}

// ListUnsynced returns up to limit incidents not yet written to Sheets,
// fewest attempts first, then oldest. Errored incidents are included so they
// are retried, but never ahead of incidents that have been tried less.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]StoredIncident, error) {
	rows, err := r.db.QueryContext(ctx,
		selectIncident+` WHERE sync_status IN (?, ?) ORDER BY attempts, created_at LIMIT ?`,
		StatusPending, StatusError, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced incidents: %w", err)
	}
	defer rows.Close()

	var out []StoredIncident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// MarkSynced records a successful write to Sheets.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, ref string) error {
	return r.update(ctx, id, `
		UPDATE incidents
		SET sync_status = ?, sheets_ref = ?, attempts = attempts + 1, last_error = '', updated_at = ?
		WHERE id = ?`,
		StatusSynced, ref, r.now().UTC().Format(timeLayout), id)
}

// MarkSyncError records a failed write attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(ctx, id, `
		UPDATE incidents
		SET sync_status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?`,
		StatusError, msg, r.now().UTC().Format(timeLayout), id)
}

func (r *SQLiteRepository) update(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update incident %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update incident %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountByStatus returns the number of incidents in each sync state.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM incidents GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("count incidents: %w", err)
	}
	defer rows.Close()

	out := map[string]int{StatusPending: 0, StatusSynced: 0, StatusError: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// PendingRecords returns the unsynced incidents laid out as sheet records,
// so they can be shown before they reach the spreadsheet.
func (r *SQLiteRepository) PendingRecords(ctx context.Context) ([]core.Record, error) {
	incs, err := r.ListUnsynced(ctx, -1)
	if err != nil {
		return nil, err
	}
	out := make([]core.Record, 0, len(incs))
	for _, inc := range incs {
		rec := inc.Report.Record(time.UTC)
		rec[core.FieldStatus] = "Pending sync"
		out = append(out, rec)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(s scanner) (*StoredIncident, error) {
	var (
		inc                          StoredIncident
		occurred, created, updated   string
		attName, attType, attContent string
	)
	err := s.Scan(
		&inc.ID, &inc.Report.DriverName, &occurred, &inc.Report.Description, &inc.Report.Incident, &inc.Report.SubmittedBy,
		&attName, &attType, &attContent,
		&inc.SyncStatus, &inc.SheetsRef, &inc.Attempts, &inc.LastError, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	if inc.Report.DateTime, err = time.Parse(timeLayout, occurred); err != nil {
		return nil, fmt.Errorf("parse occurred_at %q: %w", occurred, err)
	}
	inc.CreatedAt, _ = time.Parse(timeLayout, created)
	inc.UpdatedAt, _ = time.Parse(timeLayout, updated)
	if attName != "" || attContent != "" {
		inc.Report.File = &core.Attachment{FileName: attName, ContentType: attType, Content: attContent}
	}
	return &inc, nil
}
