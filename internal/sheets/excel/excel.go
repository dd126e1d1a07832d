// Package excel reads the shipment table from an xlsx workbook.
package excel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"titus/internal/core"
	"titus/internal/sheets"
)

// Read returns the raw rows of the Data sheet. Cells are read unformatted,
// so dates come back as Excel serial numbers.
func Read(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &core.MalformedInputError{Reason: fmt.Sprintf("not a valid xlsx workbook: %v", err)}
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheets.DataSheet); err != nil || idx < 0 {
		return nil, &core.MalformedInputError{Reason: fmt.Sprintf("workbook has no %q sheet", sheets.DataSheet)}
	}
	rows, err := f.GetRows(sheets.DataSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets.DataSheet, err)
	}
	return rows, nil
}

// ReadFile reads the Data sheet of the workbook at path.
func ReadFile(path string) ([][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return Read(bytes.NewReader(b))
}

// File is a RowSource over a workbook on disk. The file is re-read on
// every call so replacing it on disk is picked up by a reload.
type File struct {
	Path string
}

var _ sheets.RowSource = (*File)(nil)

func (f *File) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(f.Path)
}

func (f *File) Name() string { return "file" }
