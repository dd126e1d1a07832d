package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"titus/internal/core"
	"titus/internal/engine"
	"titus/internal/normalize"
)

// Params carries the user's selections for one section, keyed by metric,
// group, secondary, normalize, x, y, category, focus, year, p1_from, p1_to,
// p2_from and p2_to.
type Params map[string]string

// None clears an optional field selection.
const None = "none"

type (
	Series struct {
		Name   string
		Values []float64
	}

	// Output is one evaluated section. Exactly the members relevant to the
	// section kind are filled. Err is set when the section could not be
	// computed; other sections are unaffected.
	Output struct {
		PageID  string
		Section Section

		Labels []string
		Series []Series
		Points []engine.Point

		Summary    *engine.Summary
		Months     []engine.MonthRow
		Comparison []engine.ComparisonRow

		Normalization engine.Normalization
		FocusValue    string
		FocusOptions  []string
		Year          int
		Years         []int
		Period1       engine.Period
		Period2       engine.Period

		Err error
	}
)

// Empty reports whether there is nothing to draw.
func (o Output) Empty() bool {
	switch o.Section.Kind {
	case KindKPI:
		return o.Summary == nil
	case KindMonthly:
		return len(o.Months) == 0
	case KindScatter:
		return len(o.Points) == 0
	case KindPeriods:
		return len(o.Comparison) == 0
	}
	return len(o.Labels) == 0
}

// Warning is the user-facing message for a failed section.
func (o Output) Warning() string {
	if o.Err == nil {
		return ""
	}
	var uf *core.UnknownFieldError
	if errors.As(o.Err, &uf) {
		return fmt.Sprintf("%s skipped: %s", o.Section.Title, uf.Error())
	}
	return fmt.Sprintf("%s skipped: %v", o.Section.Title, o.Err)
}

// Evaluate computes every section of p with its defaults.
func Evaluate(p *Page, t *core.Table) []Output {
	out := make([]Output, 0, len(p.Sections))
	for i := range p.Sections {
		out = append(out, EvaluateSection(p.ID, p.Sections[i], t, nil))
	}
	return out
}

// EvaluateSection applies params to s and computes it over t.
func EvaluateSection(pageID string, s Section, t *core.Table, params Params) Output {
	resolved, err := s.Resolve(params)
	out := Output{PageID: pageID, Section: resolved}
	if err != nil {
		out.Err = err
		return out
	}

	switch resolved.Kind {
	case KindKPI:
		sum := engine.Summarize(t)
		out.Summary = &sum
	case KindMonthly:
		err = evalMonthly(&out, t, params)
	case KindBar, KindStacked, KindLine:
		err = evalGrouped(&out, t, params)
	case KindScatter:
		err = evalScatter(&out, t)
	case KindPeriods:
		err = evalPeriods(&out, t, params)
	}
	out.Err = err
	return out
}

// Resolve applies the user's selections to a copy of s. Every selection
// must come from the section's option lists.
func (s Section) Resolve(params Params) (Section, error) {
	r := s
	r.Metrics = append([]core.Field(nil), s.Metrics...)

	pick := func(key string, current core.Field, options []core.Field, optional bool) (core.Field, error) {
		raw := strings.TrimSpace(params[key])
		if raw == "" {
			return current, nil
		}
		if optional && strings.EqualFold(raw, None) {
			return core.FieldNone, nil
		}
		f, err := core.ParseField(raw)
		if err != nil {
			return current, &core.UnknownFieldError{Name: raw, Role: key}
		}
		if f == current || contains(options, f) {
			return f, nil
		}
		return current, &core.UnknownFieldError{Name: raw, Role: key}
	}

	var err error
	if r.Group, err = pick("group", s.Group, s.GroupOptions, false); err != nil {
		return s, err
	}
	if r.Secondary, err = pick("secondary", s.Secondary, s.SecondaryOptions, true); err != nil {
		return s, err
	}
	if len(s.Metrics) > 0 {
		m, err := pick("metric", s.Metrics[0], s.MetricOptions, false)
		if err != nil {
			return s, err
		}
		if m != s.Metrics[0] {
			r.Metrics = []core.Field{m}
		}
	}
	if r.X, err = pick("x", s.X, s.AxisOptions, false); err != nil {
		return s, err
	}
	if r.Y, err = pick("y", s.Y, s.AxisOptions, false); err != nil {
		return s, err
	}
	if r.Category, err = pick("category", s.Category, s.CategoryOptions, true); err != nil {
		return s, err
	}
	if raw := params["normalize"]; raw != "" {
		if _, err := engine.ParseNormalization(raw); err != nil {
			return s, err
		}
		r.Normalize = raw
	}
	return r, nil
}

func (s Section) aggregation(metric core.Field) (engine.AggregationSpec, error) {
	reduce, err := engine.ParseReduction(s.Reduce)
	if err != nil {
		return engine.AggregationSpec{}, err
	}
	norm, err := engine.ParseNormalization(s.Normalize)
	if err != nil {
		return engine.AggregationSpec{}, err
	}
	order, err := engine.ParseOrder(s.Order)
	if err != nil {
		return engine.AggregationSpec{}, err
	}
	return engine.AggregationSpec{
		Primary:   s.Group,
		Secondary: s.Secondary,
		Metric:    metric,
		Reduce:    reduce,
		Normalize: norm,
		Order:     order,
		Limit:     s.Limit,
	}, nil
}

// narrow applies the focus selection, defaulting to the first value seen.
func narrow(out *Output, t *core.Table, params Params) (*core.Table, error) {
	f := out.Section.Focus
	if f == core.FieldNone {
		return t, nil
	}
	if !t.Has(f) {
		return nil, &core.UnknownFieldError{Name: f.String(), Role: "focus"}
	}
	out.FocusOptions = engine.Options(t, f)
	if len(out.FocusOptions) == 0 {
		return t, nil
	}
	out.FocusValue = out.FocusOptions[0]
	if v, ok := params["focus"]; ok && contains(out.FocusOptions, v) {
		out.FocusValue = v
	}
	return engine.ApplyFilters(t, engine.FilterSpec{f: engine.In(out.FocusValue)}), nil
}

func evalGrouped(out *Output, t *core.Table, params Params) error {
	s := out.Section
	t, err := narrow(out, t, params)
	if err != nil {
		return err
	}

	metrics := s.Metrics
	if len(metrics) == 0 {
		// Row counts: counting the group column itself counts every row.
		metrics = []core.Field{s.Group}
	}

	first, err := s.aggregation(metrics[0])
	if err != nil {
		return err
	}
	out.Normalization = first.Normalize

	if s.Secondary != core.FieldNone {
		res, err := engine.Aggregate(t, first)
		if err != nil {
			return err
		}
		keys := res.PrimaryKeys()
		index := make(map[[2]string]float64, len(res.Groups))
		for _, g := range res.Groups {
			index[[2]string{g.Primary, g.Secondary}] = g.Value
		}
		for _, sec := range res.SecondaryKeys() {
			series := Series{Name: labelOr(sec), Values: make([]float64, len(keys))}
			for i, key := range keys {
				series.Values[i] = index[[2]string{key, sec}]
			}
			out.Series = append(out.Series, series)
		}
		out.Labels = labels(keys)
		return nil
	}

	var keys []string

	for i, m := range metrics {
		spec := first
		spec.Metric = m
		if i > 0 {
			// Later metrics follow the label order of the first.
			spec.Order, spec.Limit = engine.FirstSeen, 0
		}
		res, err := engine.Aggregate(t, spec)
		if err != nil {
			return err
		}
		if i == 0 {
			keys = res.PrimaryKeys()
		}
		values := make(map[string]float64, len(res.Groups))
		for _, g := range res.Groups {
			values[g.Primary] = g.Value
		}
		series := Series{Name: seriesName(m, spec.Reduce), Values: make([]float64, len(keys))}
		for j, key := range keys {
			series.Values[j] = values[key]
		}
		out.Series = append(out.Series, series)
	}
	out.Labels = labels(keys)
	return nil
}

func evalScatter(out *Output, t *core.Table) error {
	s := out.Section
	if s.Group == core.FieldNone {
		pts, err := engine.Points(t, engine.PointSpec{X: s.X, Y: s.Y, Size: s.Size, Color: s.Color, Category: s.Category})
		out.Points = pts
		return err
	}

	// Grouped scatter: one point per group from summed coordinates.
	sums := make([]map[string]float64, 2)
	var keys []string
	for i, f := range []core.Field{s.X, s.Y} {
		res, err := engine.Aggregate(t, engine.AggregationSpec{Primary: s.Group, Metric: f})
		if err != nil {
			return err
		}
		if i == 0 {
			keys = res.PrimaryKeys()
		}
		sums[i] = make(map[string]float64, len(res.Groups))
		for _, g := range res.Groups {
			sums[i][g.Primary] = g.Value
		}
	}
	for _, key := range keys {
		out.Points = append(out.Points, engine.Point{X: sums[0][key], Y: sums[1][key], Category: labelOr(key)})
	}
	return nil
}

func evalMonthly(out *Output, t *core.Table, params Params) error {
	out.Years = engine.Years(t)
	if len(out.Years) == 0 {
		if !t.Has(core.FieldDate) {
			return &core.UnknownFieldError{Name: core.FieldDate.String(), Role: "date"}
		}
		return nil
	}
	out.Year = out.Years[len(out.Years)-1]
	if raw := params["year"]; raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid year %q", raw)
		}
		out.Year = y
	}
	rows, err := engine.MonthlyMetrics(t, out.Year)
	out.Months = rows
	return err
}

func evalPeriods(out *Output, t *core.Table, params Params) error {
	s := out.Section
	first, last, ok := engine.DateExtent(t)
	if !ok && !t.Has(core.FieldDate) {
		return &core.UnknownFieldError{Name: core.FieldDate.String(), Role: "date"}
	}
	out.Period1 = engine.Period{From: first, To: last}
	out.Period2 = engine.Period{From: first, To: last}

	for _, b := range []struct {
		key string
		dst *core.Date
	}{
		{"p1_from", &out.Period1.From},
		{"p1_to", &out.Period1.To},
		{"p2_from", &out.Period2.From},
		{"p2_to", &out.Period2.To},
	} {
		raw := params[b.key]
		if raw == "" {
			continue
		}
		d, ok := normalize.ParseDate(raw)
		if !ok {
			return fmt.Errorf("invalid date %q for %s", raw, b.key)
		}
		*b.dst = d
	}

	rows, err := engine.ComparePeriods(t, engine.ComparisonSpec{
		Group:   s.Group,
		Metric:  s.Metrics[0],
		Period1: out.Period1,
		Period2: out.Period2,
	})
	if err != nil {
		return err
	}
	out.Comparison = rows
	name := s.Metrics[0].Header()
	p1 := Series{Name: name + " (Period 1)"}
	p2 := Series{Name: name + " (Period 2)"}
	for _, r := range rows {
		out.Labels = append(out.Labels, labelOr(r.Key))
		p1.Values = append(p1.Values, r.Period1)
		p2.Values = append(p2.Values, r.Period2)
	}
	out.Series = []Series{p1, p2}
	return nil
}

func seriesName(f core.Field, r engine.Reduction) string {
	if r == engine.Count {
		return "Count"
	}
	if r == engine.NUnique {
		return "Distinct " + f.Header()
	}
	return f.Header()
}

// labelOr names the empty category so it stays visible in charts.
func labelOr(s string) string {
	if s == "" {
		return "(blank)"
	}
	return s
}

func labels(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = labelOr(k)
	}
	return out
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
