// Package backend builds the default dataset source from configuration.
package backend

import (
	"context"

	"titus/internal/sheets"
)

// CleanupFunc releases resources held by a source.
type CleanupFunc func() error

// Result is the configured source. Source is nil for the upload backend:
// every browser session brings its own workbook.
type Result struct {
	Source  sheets.RowSource
	Cleanup CleanupFunc
}

type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type Type

	// File backend: an xlsx workbook, or a CSV export of its Data sheet.
	DataFile string

	// Sheets backend
	GoogleSpreadsheetID   string
	GoogleSheetRange      string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}

type Type string

const (
	UploadBackend Type = "upload"
	FileBackend   Type = "file"
	SheetsBackend Type = "sheets"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case UploadBackend, FileBackend, SheetsBackend:
		return true
	}
	return false
}

// Types lists the valid backend types.
func Types() []Type {
	return []Type{UploadBackend, FileBackend, SheetsBackend}
}
