package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"titus/internal/core"
	"titus/internal/normalize"
)

func workbook(t *testing.T, sheet string, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("SetSheetName: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestRead(t *testing.T) {
	b := workbook(t, "Data",
		[]interface{}{"DATE", "Destination", "Profit"},
		[]interface{}{time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "Lagos", 100.5},
		[]interface{}{"2024-01-11", "Accra"},
	)

	rows, err := Read(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3: %v", len(rows), rows)
	}
	if rows[0][0] != "DATE" || rows[1][1] != "Lagos" || rows[1][2] != "100.5" {
		t.Errorf("rows = %v", rows)
	}
	d, ok := normalize.ParseDate(rows[1][0])
	if !ok || d.String() != "2024-01-10" {
		t.Errorf("date cell %q parsed as %v, %v", rows[1][0], d, ok)
	}

	tbl, err := normalize.Normalize(rows)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if tbl.Len() != 2 || tbl.Records[1].Profit.Valid {
		t.Errorf("table = %+v", tbl.Records)
	}
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"not a workbook", []byte("DATE,Destination\n"), "not a valid xlsx"},
		{"missing Data sheet", workbook(t, "Shipments", []interface{}{"DATE"}, []interface{}{"2024-01-10"}), `no "Data" sheet`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			if !core.IsMalformedInput(err) {
				t.Fatalf("err = %v, want malformed input", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "shipments.xlsx")
	if err := os.WriteFile(p, workbook(t, "Data", []interface{}{"DATE"}, []interface{}{"2024-01-10"}), 0o600); err != nil {
		t.Fatal(err)
	}
	src := &File{Path: p}
	rows, err := src.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %v", rows)
	}

	if _, err := (&File{Path: filepath.Join(dir, "missing.xlsx")}).Rows(context.Background()); err == nil {
		t.Error("expected an error for a missing file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Rows(ctx); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
