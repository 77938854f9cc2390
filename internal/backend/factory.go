package backend

import (
	"context"
	"errors"
	"fmt"

	goption "google.golang.org/api/option"

	"norloworld/internal/amqp"
	"norloworld/internal/log"
	"norloworld/internal/services"
	"norloworld/internal/sheets"
	gsheet "norloworld/internal/sheets/google"
	"norloworld/internal/sheets/memory"
	"norloworld/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	// SheetsOptions replace service-account authentication when set.
	SheetsOptions []goption.ClientOption
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// target opens the store incidents are read from and synced to: Google
// Sheets when configured, otherwise the in-memory seed store.
type target interface {
	sheets.Source
	sheets.IncidentWriter
}

func (f *DefaultFactory) openTarget(ctx context.Context, config Config) (target, error) {
	if config.UsesSheets() {
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: []byte(config.GoogleServiceAccountJSON),
			CredentialsFile: config.GoogleServiceAccountFile,
			Sheets: gsheet.Sheets{
				Incidents: config.IncidentsSheet,
				Drivers:   config.DriversSheet,
				Types:     config.TypesSheet,
				Stats:     config.StatsSheet,
			},
			ClientOptions: f.SheetsOptions,
			Logger:        f.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	}

	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory seed data: %w", err)
	}
	return store, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	tgt, err := f.openTarget(ctx, config)
	if err != nil {
		repo.Close()
		return nil, err
	}

	var (
		publisher  services.SyncPublisher
		amqpClient *amqp.Client
	)
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync messages", log.FieldError, err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"sheets_enabled", config.UsesSheets(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Source:     WithPending(tgt, repo),
		Writer:     tgt,
		Incidents:  services.NewQueuedIncidentService(repo, publisher, f.logger),
		Repository: repo,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, repo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	tgt, err := f.openTarget(ctx, config)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &BackendResult{
		Source:    tgt,
		Writer:    tgt,
		Incidents: services.NewDirectIncidentService(tgt, f.logger),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	tgt, err := f.openTarget(context.Background(), config)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	return &BackendResult{
		Source:    tgt,
		Writer:    tgt,
		Incidents: services.NewDirectIncidentService(tgt, f.logger),
	}, nil
}
