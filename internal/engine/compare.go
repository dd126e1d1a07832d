package engine

import (
	"sort"

	"titus/internal/core"
)

type (
	// Period is an inclusive date range.
	Period struct {
		From, To core.Date
	}

	// ComparisonSpec compares the sum of Metric per Group across two
	// periods.
	ComparisonSpec struct {
		Group   core.Field
		Metric  core.Field
		Period1 Period
		Period2 Period
	}

	// ComparisonRow is one key of the outer-merged comparison. Keys missing
	// from one period count as zero there. PctDiff is zero when Period1 is
	// zero; the ratio is undefined in that case and zero is what the
	// dashboard has always shown.
	ComparisonRow struct {
		Key     string
		Period1 float64
		Period2 float64
		PctDiff float64
	}
)

func (p Period) predicate() During {
	return During{From: p.From.Time, To: p.To.Time}
}

// Valid reports whether both bounds are set.
func (p Period) Valid() bool { return p.From.Valid() && p.To.Valid() }

// ComparePeriods sums the metric per group key in each period and merges
// the two results. Rows are ordered by key.
func ComparePeriods(t *core.Table, spec ComparisonSpec) ([]ComparisonRow, error) {
	agg := AggregationSpec{Primary: spec.Group, Metric: spec.Metric, Reduce: Sum}
	if err := agg.Validate(t); err != nil {
		return nil, err
	}
	if !t.Has(core.FieldDate) {
		return nil, &core.UnknownFieldError{Name: core.FieldDate.String(), Role: "date"}
	}

	p1, err := Aggregate(ApplyFilters(t, FilterSpec{core.FieldDate: spec.Period1.predicate()}), agg)
	if err != nil {
		return nil, err
	}
	p2, err := Aggregate(ApplyFilters(t, FilterSpec{core.FieldDate: spec.Period2.predicate()}), agg)
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*ComparisonRow)
	get := func(key string) *ComparisonRow {
		row, ok := rows[key]
		if !ok {
			row = &ComparisonRow{Key: key}
			rows[key] = row
		}
		return row
	}
	for _, g := range p1.Groups {
		get(g.Primary).Period1 = g.Value
	}
	for _, g := range p2.Groups {
		get(g.Primary).Period2 = g.Value
	}

	out := make([]ComparisonRow, 0, len(rows))
	for _, row := range rows {
		if row.Period1 != 0 {
			row.PctDiff = (row.Period2 - row.Period1) / row.Period1 * 100
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
