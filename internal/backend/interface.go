package backend

import (
	"context"

	"norloworld/internal/services"
	"norloworld/internal/sheets"
	"norloworld/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is everything a binary needs from one backend selection.
type BackendResult struct {
	// Source feeds snapshot loads.
	Source sheets.Source
	// Writer is the spreadsheet (or in-memory stand-in) incidents end up in.
	Writer sheets.IncidentWriter
	// Incidents accepts submissions.
	Incidents *services.IncidentService
	// Repository is set for the sqlite backend only.
	Repository *storage.SQLiteRepository
	Cleanup    CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	IncidentsSheet           string
	DriversSheet             string
	TypesSheet               string
	StatsSheet               string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
