package report

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"titus/internal/core"
	"titus/internal/engine"
)

func day(y int, m time.Month, d int) core.Date {
	return core.NewDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func shipments() *core.Table {
	cols := []core.Field{
		core.FieldDate, core.FieldDestination, core.FieldClientCode, core.FieldClientLevel,
		core.FieldCategory1, core.FieldProfit, core.FieldSalesTotal, core.FieldCostTotal,
		core.FieldWeight, core.FieldCBM,
	}
	return core.NewTable(cols, []core.Record{
		{Date: day(2024, 1, 10), Destination: "Lagos", ClientCode: "C1", ClientLevel: "VIP", Category1: "Food", Profit: core.Num(100), SalesTotal: core.Num(400), CostTotal: core.Num(300), Weight: core.Num(10), CBM: core.Num(1)},
		{Date: day(2024, 1, 20), Destination: "Accra", ClientCode: "C2", ClientLevel: "Std", Category1: "Tools", Profit: core.Num(50), SalesTotal: core.Num(150), CostTotal: core.Num(100), Weight: core.Num(5), CBM: core.Num(0.5)},
		{Date: day(2024, 2, 5), Destination: "Lagos", ClientCode: "C1", ClientLevel: "VIP", Category1: "Tools", Profit: core.Num(-20), SalesTotal: core.Num(80), CostTotal: core.Num(100), Weight: core.Num(2)},
		{Date: day(2024, 3, 1), Destination: "Lome", ClientCode: "C3", ClientLevel: "Std", Category1: "Food", SalesTotal: core.Num(60), CostTotal: core.Num(60)},
	})
}

func section(t *testing.T, page, id string) (*Page, Section) {
	t.Helper()
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	p, err := c.Page(page)
	if err != nil {
		t.Fatalf("Page(%q): %v", page, err)
	}
	s, err := p.Section(id)
	if err != nil {
		t.Fatalf("Section(%q): %v", id, err)
	}
	return p, *s
}

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	var ids []string
	for _, p := range c.Pages {
		ids = append(ids, p.ID)
	}
	want := []string{"main", "comparison", "assessment", "by-date"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("pages = %v, want %v", ids, want)
	}

	if _, err := c.Page("missing"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("missing page error = %v", err)
	}
	p, _ := c.Page("main")
	if _, err := p.Section("missing"); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("missing section error = %v", err)
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no pages", "pages: []", "no pages"},
		{"unknown field", "pages:\n- id: a\n  sections:\n  - {id: s, kind: bar, group: Nope, metrics: [Profit]}", "unknown"},
		{"unknown kind", "pages:\n- id: a\n  sections:\n  - {id: s, kind: pie}", "unknown kind"},
		{"bar without group", "pages:\n- id: a\n  sections:\n  - {id: s, kind: bar, metrics: [Profit]}", "group is required"},
		{"duplicate page", "pages:\n- id: a\n- id: a", "duplicate page"},
		{"duplicate section", "pages:\n- id: a\n  sections:\n  - {id: s, kind: kpi}\n  - {id: s, kind: kpi}", "duplicate section"},
		{"periods with two metrics", "pages:\n- id: a\n  sections:\n  - {id: s, kind: periods, group: Destination, metrics: [Profit, CBM]}", "exactly one metric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestEvaluateBarOrdersByValue(t *testing.T) {
	_, s := section(t, "main", "profit-analysis")
	out := EvaluateSection("main", s, shipments(), nil)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if want := []string{"Lagos", "Accra", "Lome"}; !reflect.DeepEqual(out.Labels, want) {
		t.Errorf("Labels = %v, want %v", out.Labels, want)
	}
	if len(out.Series) != 1 || !reflect.DeepEqual(out.Series[0].Values, []float64{80, 50, 0}) {
		t.Errorf("Series = %+v", out.Series)
	}
	if out.Series[0].Name != "Profit" {
		t.Errorf("series name = %q", out.Series[0].Name)
	}
}

func TestEvaluateSelections(t *testing.T) {
	_, s := section(t, "main", "profit-analysis")

	out := EvaluateSection("main", s, shipments(), Params{"group": "Client level", "metric": "Sales total"})
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if want := []string{"VIP", "Std"}; !reflect.DeepEqual(out.Labels, want) {
		t.Errorf("Labels = %v, want %v", out.Labels, want)
	}
	if !reflect.DeepEqual(out.Series[0].Values, []float64{480, 210}) {
		t.Errorf("Values = %v", out.Series[0].Values)
	}

	for _, p := range []Params{
		{"group": "Description in E"},
		{"metric": "Nope"},
		{"secondary": "Destination"},
	} {
		out := EvaluateSection("main", s, shipments(), p)
		if !core.IsUnknownField(out.Err) {
			t.Errorf("%v: Err = %v, want unknown field", p, out.Err)
		}
		if out.Warning() == "" {
			t.Errorf("%v: no warning", p)
		}
	}
}

func TestEvaluateMultipleMetricsShareLabels(t *testing.T) {
	_, s := section(t, "assessment", "cost-efficiency")
	out := EvaluateSection("assessment", s, shipments(), nil)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if want := []string{"Food", "Tools"}; !reflect.DeepEqual(out.Labels, want) {
		t.Fatalf("Labels = %v, want %v", out.Labels, want)
	}
	want := []Series{
		{Name: "Cost total", Values: []float64{360, 200}},
		{Name: "Sales total", Values: []float64{460, 230}},
	}
	if !reflect.DeepEqual(out.Series, want) {
		t.Errorf("Series = %+v, want %+v", out.Series, want)
	}
}

func TestEvaluateStackedCounts(t *testing.T) {
	_, s := section(t, "comparison", "categorical-pair")
	out := EvaluateSection("comparison", s, shipments(), nil)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if want := []string{"Lagos", "Accra", "Lome"}; !reflect.DeepEqual(out.Labels, want) {
		t.Errorf("Labels = %v, want %v", out.Labels, want)
	}
	want := []Series{
		{Name: "VIP", Values: []float64{2, 0, 0}},
		{Name: "Std", Values: []float64{0, 1, 1}},
	}
	if !reflect.DeepEqual(out.Series, want) {
		t.Errorf("Series = %+v, want %+v", out.Series, want)
	}
}

func TestEvaluatePercentage(t *testing.T) {
	_, s := section(t, "main", "breakdown")
	out := EvaluateSection("main", s, shipments(), Params{"metric": "Sales total", "normalize": "percentage"})
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if out.Normalization != engine.PercentOfPrimary {
		t.Errorf("Normalization = %v", out.Normalization)
	}
	for i, label := range out.Labels {
		var total float64
		for _, series := range out.Series {
			total += series.Values[i]
		}
		if total < 99.999 || total > 100.001 {
			t.Errorf("%s sums to %v", label, total)
		}
	}

	if out := EvaluateSection("main", s, shipments(), Params{"normalize": "ratio"}); out.Err == nil {
		t.Error("expected an error for an unknown normalization")
	}
}

func TestEvaluateFocus(t *testing.T) {
	_, s := section(t, "main", "client-analysis")

	out := EvaluateSection("main", s, shipments(), nil)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if out.FocusValue != "VIP" || !reflect.DeepEqual(out.FocusOptions, []string{"VIP", "Std"}) {
		t.Errorf("focus = %q of %v", out.FocusValue, out.FocusOptions)
	}
	if !reflect.DeepEqual(out.Labels, []string{"Food", "Tools"}) || !reflect.DeepEqual(out.Series[0].Values, []float64{100, -20}) {
		t.Errorf("VIP = %v %v", out.Labels, out.Series[0].Values)
	}

	out = EvaluateSection("main", s, shipments(), Params{"focus": "Std"})
	if !reflect.DeepEqual(out.Labels, []string{"Tools", "Food"}) || !reflect.DeepEqual(out.Series[0].Values, []float64{50, 0}) {
		t.Errorf("Std = %v %v", out.Labels, out.Series[0].Values)
	}

	// Unknown values fall back to the first option.
	out = EvaluateSection("main", s, shipments(), Params{"focus": "Gold"})
	if out.FocusValue != "VIP" {
		t.Errorf("FocusValue = %q", out.FocusValue)
	}
}

func TestEvaluateScatter(t *testing.T) {
	_, s := section(t, "assessment", "volume-weight")
	out := EvaluateSection("assessment", s, shipments(), nil)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	want := []engine.Point{
		{X: 1, Y: 10, Category: "Food"},
		{X: 0.5, Y: 7, Category: "Tools"},
	}
	if !reflect.DeepEqual(out.Points, want) {
		t.Errorf("Points = %+v, want %+v", out.Points, want)
	}

	_, s = section(t, "main", "multi-dimension")
	out = EvaluateSection("main", s, shipments(), Params{"x": "Cost total", "category": "none"})
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if len(out.Points) != 3 {
		t.Errorf("got %d points, want 3 rows with profit", len(out.Points))
	}
	for _, p := range out.Points {
		if p.Category != "" {
			t.Errorf("category = %q with category disabled", p.Category)
		}
	}
}

func TestEvaluateMonthly(t *testing.T) {
	_, s := section(t, "main", "monthly")
	out := EvaluateSection("main", s, shipments(), nil)
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	if out.Year != 2024 || !reflect.DeepEqual(out.Years, []int{2024}) {
		t.Errorf("Year = %d of %v", out.Year, out.Years)
	}
	if len(out.Months) != 3 {
		t.Errorf("got %d months, want 3", len(out.Months))
	}

	if out := EvaluateSection("main", s, shipments(), Params{"year": "abc"}); out.Err == nil {
		t.Error("expected an error for a bad year")
	}
}

func TestEvaluatePeriods(t *testing.T) {
	_, s := section(t, "by-date", "periods")
	out := EvaluateSection("by-date", s, shipments(), Params{
		"p1_from": "2024-01-01", "p1_to": "2024-01-31",
		"p2_from": "2024-02-01", "p2_to": "2024-02-29",
	})
	if out.Err != nil {
		t.Fatalf("Err = %v", out.Err)
	}
	want := []engine.ComparisonRow{
		{Key: "Accra", Period1: 150, Period2: 0, PctDiff: -100},
		{Key: "Lagos", Period1: 400, Period2: 80, PctDiff: -80},
	}
	if !reflect.DeepEqual(out.Comparison, want) {
		t.Errorf("Comparison = %+v, want %+v", out.Comparison, want)
	}
	if len(out.Series) != 2 || !reflect.DeepEqual(out.Series[1].Values, []float64{0, 80}) {
		t.Errorf("Series = %+v", out.Series)
	}

	// Defaults span the whole data range for both periods.
	out = EvaluateSection("by-date", s, shipments(), nil)
	if !out.Period1.From.Equal(day(2024, 1, 10).Time) || !out.Period2.To.Equal(day(2024, 3, 1).Time) {
		t.Errorf("default periods = %v, %v", out.Period1, out.Period2)
	}
	for _, r := range out.Comparison {
		if r.PctDiff != 0 {
			t.Errorf("%s: PctDiff = %v for identical periods", r.Key, r.PctDiff)
		}
	}

	if out := EvaluateSection("by-date", s, shipments(), Params{"p1_from": "soon"}); out.Err == nil {
		t.Error("expected an error for a bad date")
	}
}

func TestEvaluateIsolatesFailures(t *testing.T) {
	p, _ := section(t, "main", "kpis")
	// Without a profit column the profit sections fail but the rest render.
	tbl := core.NewTable(
		[]core.Field{core.FieldDestination, core.FieldSalesTotal},
		[]core.Record{{Destination: "Lagos", SalesTotal: core.Num(10)}},
	)
	outs := Evaluate(p, tbl)
	if len(outs) != len(p.Sections) {
		t.Fatalf("got %d outputs, want %d", len(outs), len(p.Sections))
	}
	byID := map[string]Output{}
	for _, o := range outs {
		byID[o.Section.ID] = o
	}
	if byID["profit-analysis"].Err == nil {
		t.Error("profit-analysis should fail without a profit column")
	}
	if o := byID["top-destinations"]; o.Err != nil || o.Empty() {
		t.Errorf("top-destinations = %+v", o)
	}
	if o := byID["kpis"]; o.Err != nil || o.Summary == nil || o.Summary.Shipments != 1 {
		t.Errorf("kpis = %+v", o)
	}
}

func TestEvaluateEmptyTable(t *testing.T) {
	p, _ := section(t, "main", "kpis")
	tbl := core.NewTable(shipments().Columns(), nil)
	for _, o := range Evaluate(p, tbl) {
		if o.Err != nil {
			t.Errorf("%s: Err = %v", o.Section.ID, o.Err)
		}
		if o.Section.Kind != KindKPI && !o.Empty() {
			t.Errorf("%s: not empty", o.Section.ID)
		}
	}
}
