package http

import (
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"titus/internal/core"
	"titus/internal/engine"
	"titus/internal/format"
	"titus/internal/report"
	"titus/internal/services"
)

// Sidebar multi-selects, in display order.
var filterFields = []core.Field{
	core.FieldYear, core.FieldMonth,
	core.FieldDestination, core.FieldShipmentNo, core.FieldClientCode, core.FieldClientLevel,
	core.FieldSalesperson, core.FieldMark, core.FieldCategory1, core.FieldCategory2,
	core.FieldDescription, core.FieldGoodsType, core.FieldTransportType, core.FieldLoadingWarehouse,
}

type (
	option struct {
		Value    string
		Label    string
		Selected bool
	}

	setFilter struct {
		Field   core.Field
		Options []option
	}

	rangeFilter struct {
		Field    core.Field
		Min, Max float64
		Lo, Hi   string
	}

	sidebarView struct {
		Dataset     *services.Dataset
		Uploaded    bool
		HasSource   bool
		Total       int
		Rows        int
		Filtered    bool
		Active      []string
		Sets        []setFilter
		Ranges      []rangeFilter
		HasDates    bool
		DatePreset  string
		DateFrom    string
		DateTo      string
		DateMin     string
		DateMax     string
		MaxUploadMB int
	}

	sectionView struct {
		report.Output
		Query string
	}

	pageView struct {
		Page      *report.Page
		Sections  []sectionView
		NoDataset bool
		Rows      int
	}

	indexView struct {
		Pages   []report.Page
		Current *report.Page
		Sidebar sidebarView
		Content pageView
	}
)

func newSectionView(out report.Output, params report.Params) sectionView {
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, v)
	}
	return sectionView{Output: out, Query: q.Encode()}
}

// ChartURL addresses the section's chart as "json" or "png".
func (v sectionView) ChartURL(ext string) string {
	u := "/charts/" + url.PathEscape(v.PageID) + "/" + url.PathEscape(v.Section.ID) + "." + ext
	if v.Query != "" {
		u += "?" + v.Query
	}
	return u
}

// SectionURL is where the section's controls submit.
func (v sectionView) SectionURL() string {
	return "/pages/" + url.PathEscape(v.PageID) + "/sections/" + url.PathEscape(v.Section.ID)
}

// buildSidebar lists filter controls for the dataset's full table and marks
// the selections held by the view.
func buildSidebar(d *services.Dataset, view engine.View, uploaded, hasSource bool, maxUploadMB int) sidebarView {
	sv := sidebarView{
		Dataset:     d,
		Uploaded:    uploaded,
		HasSource:   hasSource,
		Filtered:    view.IsFiltered(),
		MaxUploadMB: maxUploadMB,
		DatePreset:  string(view.Preset()),
	}
	if d == nil {
		return sv
	}
	t := d.Table
	sv.Total = t.Len()
	sv.Rows = view.Apply(t).Len()

	spec, _ := view.Spec()
	sv.Active = spec.Describe()

	for _, f := range filterFields {
		if !t.Has(f) {
			continue
		}
		selected := map[string]bool{}
		if p, ok := spec[f].(engine.OneOf); ok {
			for _, v := range p.Values {
				selected[v] = true
			}
		}
		sf := setFilter{Field: f}
		for _, v := range engine.Options(t, f) {
			sf.Options = append(sf.Options, option{Value: v, Label: blankLabel(v), Selected: selected[v]})
		}
		sv.Sets = append(sv.Sets, sf)
	}

	for _, f := range core.NumericFields() {
		lo, hi, ok := engine.Extent(t, f)
		if !ok {
			continue
		}
		rf := rangeFilter{Field: f, Min: lo, Max: hi}
		if p, ok := spec[f].(engine.Between); ok {
			rf.Lo, rf.Hi = formatFloat(p.Lo), formatFloat(p.Hi)
		}
		sv.Ranges = append(sv.Ranges, rf)
	}

	if first, last, ok := engine.DateExtent(t); ok {
		sv.HasDates = true
		sv.DateMin, sv.DateMax = first.String(), last.String()
		if p, ok := spec[core.FieldDate].(engine.During); ok {
			sv.DateFrom = core.NewDate(p.From).String()
			sv.DateTo = core.NewDate(p.To).String()
		}
	}
	return sv
}

// blankLabel names the empty category so it can be picked.
func blankLabel(s string) string {
	if s == "" {
		return "(blank)"
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fieldChoices puts current first, then the remaining options.
func fieldChoices(current core.Field, options []core.Field) []core.Field {
	out := make([]core.Field, 0, len(options)+1)
	if current != core.FieldNone {
		out = append(out, current)
	}
	for _, f := range options {
		if f != current {
			out = append(out, f)
		}
	}
	return out
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   func(d decimal.Decimal) string { return format.Money(d) },
		"moneyf":  func(v float64) string { return format.Money(decimal.NewFromFloat(v)) },
		"number":  format.Number,
		"int":     format.Int,
		"percent": format.Percent,
		"header":  func(f core.Field) string { return f.Header() },
		"key":     func(f core.Field) string { return f.Key() },
		"label":   blankLabel,
		"date":    func(d core.Date) string { return d.String() },
		"month":   func(m time.Month) string { return m.String() },
		"float":   formatFloat,
		"choices": fieldChoices,
		"isNone":  func(f core.Field) bool { return f == core.FieldNone },
		"first": func(fs []core.Field) core.Field {
			if len(fs) == 0 {
				return core.FieldNone
			}
			return fs[0]
		},
		"none": func() string { return report.None },
	}
}
