// Package normalize turns a raw spreadsheet grid into a typed shipment
// table. Cell-level parse failures never surface as errors: they become
// nulls so every data row survives normalization.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"titus/internal/core"
)

// Excel serials outside this window are treated as plain numbers, not dates.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"01-02-06",
	"1-2-06",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// PromoteHeader splits off the first row as column names. The source
// sheets carry the header inside the data body, so a grid with fewer than
// two rows has no data at all.
func PromoteHeader(rows [][]string) ([]string, [][]string, error) {
	if len(rows) < 2 {
		return nil, nil, &core.MalformedInputError{Reason: "table has fewer than 2 rows"}
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = strings.TrimSpace(cell)
	}
	return header, rows[1:], nil
}

// ParseDate parses a calendar date in one of the accepted layouts or as an
// Excel serial day number. ok is false when nothing matched.
func ParseDate(raw string) (core.Date, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return core.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t), true
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v >= minExcelSerial && v <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(v, false); err == nil {
			return core.NewDate(t), true
		}
	}
	return core.Date{}, false
}

// CoerceNumeric parses a decimal number. Empty strings, text, NaN and
// infinities yield a null.
func CoerceNumeric(raw string) core.Number {
	s := strings.TrimSpace(raw)
	if s == "" {
		return core.Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return core.Number{}
	}
	return core.Num(v)
}

// Normalize promotes the header, maps known columns onto record fields and
// coerces DATE and the numeric columns. Unknown columns are ignored and
// missing ones are simply absent from the resulting table.
func Normalize(rows [][]string) (*core.Table, error) {
	header, body, err := PromoteHeader(rows)
	if err != nil {
		return nil, err
	}

	index := columnIndex(header)
	columns := make([]core.Field, 0, len(index))
	for _, f := range core.SourceFields() {
		if _, ok := index[f]; ok {
			columns = append(columns, f)
		}
	}

	records := make([]core.Record, len(body))
	for i, row := range body {
		rec := &records[i]
		for _, f := range columns {
			raw := cell(row, index[f])
			switch f.Kind() {
			case core.KindDate:
				rec.Date, _ = ParseDate(raw)
			case core.KindNumber:
				*rec.NumberRef(f) = CoerceNumeric(raw)
			default:
				*rec.TextRef(f) = raw
			}
		}
	}
	return core.NewTable(columns, records), nil
}

// columnIndex locates each source field in the header. Exact titles win;
// otherwise titles are compared after folding case, accents and spacing.
// The first matching column is used when a title repeats.
func columnIndex(header []string) map[core.Field]int {
	index := make(map[core.Field]int)
	for i, h := range header {
		if f, err := core.ParseField(h); err == nil && !f.Derived() {
			if _, seen := index[f]; !seen {
				index[f] = i
			}
		}
	}
	folded := make(map[string]core.Field)
	for _, f := range core.SourceFields() {
		folded[foldHeader(f.Header())] = f
	}
	for i, h := range header {
		f, ok := folded[foldHeader(h)]
		if !ok {
			continue
		}
		if _, seen := index[f]; !seen {
			index[f] = i
		}
	}
	return index
}

func foldHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
