// Package export writes the current view of the shipment table as a flat
// CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"titus/internal/core"
)

// Filename is offered to the browser for downloads.
const Filename = "titus_filtered.csv"

// Columns lists the source columns of t in canonical order, followed by
// the derived date parts when the table has dates.
func Columns(t *core.Table) []core.Field {
	var out []core.Field
	for _, f := range core.SourceFields() {
		if t.Has(f) {
			out = append(out, f)
		}
	}
	if t.Has(core.FieldDate) {
		out = append(out, core.FieldYear, core.FieldMonth)
	}
	return out
}

// Records renders t as string rows with a header row first. Dates use
// 2006-01-02 and null values are empty cells.
func Records(t *core.Table) [][]string {
	cols := Columns(t)
	header := make([]string, len(cols))
	for i, f := range cols {
		header[i] = f.Header()
	}
	out := make([][]string, 0, t.Len()+1)
	out = append(out, header)
	for _, r := range t.Records {
		row := make([]string, len(cols))
		for i, f := range cols {
			row[i] = r.Text(f)
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes t to w. Every cell is kept as text so values are written
// back exactly as they are rendered in the dashboard.
func WriteCSV(w io.Writer, t *core.Table) error {
	records := Records(t)
	if len(records) < 2 {
		// A frame needs at least one row; an empty view is just its header.
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(records); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		return nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return fmt.Errorf("build export frame: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
