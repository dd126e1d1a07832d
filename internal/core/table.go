package core

// Table is the normalized dataset. It is treated as read-only once built;
// filtering produces a new Table sharing no mutable state with its parent.
type Table struct {
	columns []Field
	present [fieldCount]bool
	Records []Record
}

// NewTable builds a table over the given source columns.
func NewTable(columns []Field, records []Record) *Table {
	t := &Table{Records: records}
	for _, f := range columns {
		if !f.Valid() || f.Derived() || t.present[f] {
			continue
		}
		t.columns = append(t.columns, f)
		t.present[f] = true
	}
	if t.present[FieldDate] {
		t.present[FieldYear] = true
		t.present[FieldMonth] = true
	}
	return t
}

// Has reports whether f is available in the table.
func (t *Table) Has(f Field) bool {
	return f.Valid() && t.present[f]
}

// Columns returns the source columns in the order they were loaded.
func (t *Table) Columns() []Field {
	out := make([]Field, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Subset returns a table with the same columns and the records for which
// keep returns true, in their original order.
func (t *Table) Subset(keep func(Record) bool) *Table {
	out := &Table{columns: t.columns, present: t.present}
	for _, r := range t.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}
