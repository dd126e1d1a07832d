package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"titus/internal/sheets/excel"
	"titus/internal/sheets/google"
	"titus/internal/sheets/memory"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case UploadBackend:
		f.logger.Info("Upload backend selected, datasets come from browser uploads")
		return &Result{}, nil
	case FileBackend:
		return f.createFileBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	}
	return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
}

// createFileBackend reads workbooks on every load so edits on disk show up
// after a reload. CSV exports are read once into memory.
func (f *DefaultFactory) createFileBackend(config Config) (*Result, error) {
	if strings.EqualFold(filepath.Ext(config.DataFile), ".csv") {
		store, err := memory.NewFromCSV(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CSV source: %w", err)
		}
		f.logger.Info("Initialized CSV file backend", "path", config.DataFile)
		return &Result{Source: store}, nil
	}
	f.logger.Info("Initialized workbook file backend", "path", config.DataFile)
	return &Result{Source: &excel.File{Path: config.DataFile}}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		Range:           config.GoogleSheetRange,
		CredentialsFile: config.GoogleCredentialsFile,
		CredentialsJSON: config.GoogleCredentialsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Source: cli}, nil
}
